package memorystorage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/db/storagetest"
)

func Test(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Storage {
		theStorage, err := New()
		require.NoError(t, err, "The memorystorage.New() should not return error")
		t.Cleanup(func() {
			require.NoError(t, theStorage.Close(), "The memorystorage.Close() should not return error")
		})
		return theStorage
	})
}
