package results

import (
	"context"
	"errors"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// MultiSink persists to every sink in order and joins their errors.
type MultiSink []schemas.ResultSink

func (m MultiSink) Persist(ctx context.Context, result *schemas.BatchResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Persist(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
