package pending

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/simplesurance/commitqueue/internal/orderedmap"
	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const TypeQueue = "PendingQueue"

// Queue is the ordered set of pending commits, keyed by issue.
type Queue struct {
	commits *orderedmap.Map[int, *verification.PendingCommit]
}

func NewQueue() *Queue {
	return &Queue{commits: orderedmap.New[int, *verification.PendingCommit]()}
}

// Add appends pc to the queue.
// It returns false if a commit for the same issue is already queued.
func (q *Queue) Add(pc *verification.PendingCommit) bool {
	return q.commits.Add(pc.Issue, pc)
}

// Get returns the commit for issue, nil if it is not queued.
func (q *Queue) Get(issue int) *verification.PendingCommit {
	return q.commits.Get(issue)
}

// Remove removes the commit for issue from the queue and returns it.
func (q *Queue) Remove(issue int) *verification.PendingCommit {
	return q.commits.Delete(issue)
}

func (q *Queue) Contains(issue int) bool {
	return q.commits.Contains(issue)
}

func (q *Queue) Len() int {
	return q.commits.Len()
}

// Commits returns the queued commits in order.
func (q *Queue) Commits() []*verification.PendingCommit {
	return q.commits.Values()
}

type queueJSON struct {
	PendingCommits json.RawMessage `json:"pending_commits"`
}

// MarshalJSON encodes the queue as a tagged JSON object. The commits are
// stored in the pending_commits object, keyed by issue, in queue order.
func (q *Queue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	var i int
	var err error
	q.commits.Foreach(func(issue int, pc *verification.PendingCommit) bool {
		var b []byte

		b, err = json.Marshal(pc)
		if err != nil {
			err = fmt.Errorf("encoding issue %d failed: %w", issue, err)
			return false
		}

		if i > 0 {
			buf.WriteByte(',')
		}
		i++

		buf.WriteString(strconv.Quote(strconv.Itoa(issue)))
		buf.WriteByte(':')
		buf.Write(b)

		return true
	})
	if err != nil {
		return nil, err
	}

	buf.WriteByte('}')

	return persist.Marshal(TypeQueue, &queueJSON{PendingCommits: buf.Bytes()})
}

// UnmarshalJSON decodes a queue encoded by MarshalJSON, the order of the
// commits is preserved.
func (q *Queue) UnmarshalJSON(b []byte) error {
	var aux queueJSON

	if err := persist.Unmarshal(b, TypeQueue, &aux); err != nil {
		return err
	}

	commits := orderedmap.New[int, *verification.PendingCommit]()

	if len(aux.PendingCommits) > 0 && !bytes.Equal(aux.PendingCommits, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(aux.PendingCommits))

		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("pending_commits: %w", err)
		}

		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("pending_commits: %w", err)
			}

			key, _ := tok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("pending_commits: decoding %q failed: %w", key, err)
			}

			pc, err := decodePendingCommit(raw)
			if err != nil {
				return fmt.Errorf("pending_commits: decoding %q failed: %w", key, err)
			}

			if strconv.Itoa(pc.Issue) != key {
				return fmt.Errorf("pending_commits: key %q does not match issue %d", key, pc.Issue)
			}

			if !commits.Add(pc.Issue, pc) {
				return fmt.Errorf("pending_commits: duplicate issue %d", pc.Issue)
			}
		}

		if err := expectDelim(dec, '}'); err != nil {
			return fmt.Errorf("pending_commits: %w", err)
		}
	}

	q.commits = commits

	return nil
}

func expectDelim(dec *json.Decoder, delim json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if d, ok := tok.(json.Delim); !ok || d != delim {
		return fmt.Errorf("expected %q, got %v", delim, tok)
	}

	return nil
}
