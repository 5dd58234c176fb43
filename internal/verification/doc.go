// Package verification defines the vocabulary shared by the commit queue
// verifiers.
//
// A Verifier checks one aspect of a PendingCommit, e.g. that it was approved
// by a committer or that all required try jobs passed. Each verifier stores
// its progress for a commit as a Record in PendingCommit.Verifications under
// the verifier's name. The commit queue lands a commit when all records are
// in the Succeeded state and none of them asks to postpone the decision. It
// gives up on the commit as soon as one record is Failed.
//
// Pre-patch verifiers only look at the information provided by the code
// review service and run before a commit is admitted to the queue.
// Post-patch verifiers run for admitted commits.
//
// Verify is called once per commit and verifier. UpdateStatus is called every
// poll cycle for all commits the verifier has a non-terminal Record for, it
// must not repeat outbound actions for work that is already in flight.
package verification
