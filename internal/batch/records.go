// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/matt-FFFFFF/procgate/internal/runner"
)

var (
	// ErrWriteGob is returned when writing the results to a binary format fails.
	ErrWriteGob = errors.New("failed to write binary results")
	// ErrReadGob is returned when a binary results file cannot be decoded.
	ErrReadGob = errors.New("failed to read binary results")
	// ErrWriteJSON is returned when the results cannot be rendered as JSON.
	ErrWriteJSON = errors.New("failed to write JSON results")
)

// record is the serialisable form of an Outcome.
type record struct {
	ID         string `json:"id"`
	Status     Status `json:"status"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
}

// snapshot is the payload of a binary results file.
type snapshot struct {
	Name    string
	Created time.Time
	Records []record
}

func (r Results) records() []record {
	ids := r.IDs()
	recs := make([]record, len(ids))

	for i, id := range ids {
		o := r[id]
		recs[i] = record{
			ID:         id,
			Status:     o.Status(),
			ExitCode:   o.Result.ExitCode,
			Stdout:     o.Result.Stdout,
			Stderr:     o.Result.Stderr,
			DurationMs: o.Result.Duration.Milliseconds(),
			RetryCount: o.Result.RetryCount,
		}

		if o.Err != nil {
			recs[i].Error = o.Err.Error()
		}
	}

	return recs
}

// WriteJSON writes the results as a JSON array in input order, coloured
// when colour is true.
func (r Results) WriteJSON(w io.Writer, colour bool) error {
	b, err := json.Marshal(r.records())
	if err != nil {
		return errors.Join(ErrWriteJSON, err)
	}

	var generic []any
	if err := json.Unmarshal(b, &generic); err != nil {
		return errors.Join(ErrWriteJSON, err)
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	f.DisabledColor = !colour

	out, err := f.Marshal(generic)
	if err != nil {
		return errors.Join(ErrWriteJSON, err)
	}

	if _, err := w.Write(append(out, '\n')); err != nil {
		return errors.Join(ErrWriteJSON, err)
	}

	return nil
}

// WriteBinary writes a gob snapshot of the results labelled with name.
func (r Results) WriteBinary(w io.Writer, name string) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(snapshot{Name: name, Created: time.Now(), Records: r.records()}); err != nil {
		return errors.Join(ErrWriteGob, err)
	}

	return nil
}

// ReadBinary decodes a snapshot written by WriteBinary. Errors are restored
// as opaque values that still match runner.ErrCancelled for cancelled items.
func ReadBinary(rd io.Reader) (string, Results, error) {
	var snap snapshot
	if err := gob.NewDecoder(rd).Decode(&snap); err != nil {
		return "", nil, errors.Join(ErrReadGob, err)
	}

	results := make(Results, len(snap.Records))

	for i, rec := range snap.Records {
		o := Outcome{
			Index: i,
			Result: &runner.Result{
				Stdout:     rec.Stdout,
				Stderr:     rec.Stderr,
				ExitCode:   rec.ExitCode,
				Duration:   time.Duration(rec.DurationMs) * time.Millisecond,
				RetryCount: rec.RetryCount,
			},
		}

		if rec.Status != StatusSucceeded {
			o.Err = &restoredError{msg: rec.Error, cancelled: rec.Status == StatusCancelled}
		}

		results[rec.ID] = o
	}

	return snap.Name, results, nil
}

// restoredError stands in for an error read back from a snapshot.
type restoredError struct {
	msg       string
	cancelled bool
}

func (e *restoredError) Error() string {
	return e.msg
}

func (e *restoredError) Is(target error) bool {
	return e.cancelled && target == runner.ErrCancelled
}
