package natskv

import (
	"context"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// ephemeralPutForTest writes an ephemeral node without taking ownership,
// as another process would.
func (s *Store) ephemeralPutForTest(ctx context.Context, path string) error {
	key, err := pathToKey(path)
	if err != nil {
		return err
	}
	data, err := store.EncodeRecord(types.NewRecord(store.Base(path)))
	if err != nil {
		return err
	}
	_, err = s.ephemeral.Put(ctx, key, data)

	return err
}
