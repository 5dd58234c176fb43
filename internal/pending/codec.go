package pending

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/tryjob"
	"github.com/simplesurance/commitqueue/internal/verification"
	"github.com/simplesurance/commitqueue/internal/verification/treestatus"
)

func decodePendingCommit(data []byte) (*verification.PendingCommit, error) {
	type plain verification.PendingCommit

	var pc verification.PendingCommit
	aux := struct {
		*plain
		Verifications json.RawMessage `json:"verifications"`
	}{
		plain: (*plain)(&pc),
	}

	if err := persist.Unmarshal(data, verification.TypePendingCommit, &aux); err != nil {
		return nil, err
	}

	if err := decodeRecords(aux.Verifications, &pc); err != nil {
		return nil, err
	}

	return &pc, nil
}

// decodeRecords decodes the verifications object into pc, keeping the
// order of the object.
func decodeRecords(data json.RawMessage, pc *verification.PendingCommit) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("verifications: %w", err)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("verifications: %w", err)
		}

		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("verification %q: %w", name, err)
		}

		rec, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("verification %q: %w", name, err)
		}

		pc.Set(name, rec)
	}

	return expectDelim(dec, '}')
}

func decodeRecord(data []byte) (verification.Record, error) {
	tag, err := persist.PeekType(data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case verification.TypeSimple:
		var rec verification.Simple
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}

		return &rec, nil

	case tryjob.TypeTryJobs:
		rec, err := tryjob.Decode(data)
		if err != nil {
			return nil, err
		}

		return rec, nil

	case treestatus.TypeRecord:
		var rec treestatus.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}

		return &rec, nil

	default:
		return nil, fmt.Errorf("unsupported verification record type: %q", tag)
	}
}
