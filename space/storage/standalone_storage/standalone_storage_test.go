package standalone_storage

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*StandAloneStorage, func()) {
	dir, err := ioutil.TempDir("", "standalone_storage")
	require.Nil(t, err)
	conf := config.NewTestConfig()
	conf.Engine = config.EngineBadger
	conf.DBPath = dir
	s := NewStandAloneStorage(conf)
	require.Nil(t, s.Start())
	return s, func() {
		s.Stop()
		os.RemoveAll(dir)
	}
}

func TestReader(t *testing.T) {
	s, cleanUp := newTestStorage(t)
	defer cleanUp()

	cf := engine_util.CfEntry
	ctx := context.Background()
	batch := []storage.Modify{
		{
			Data: storage.Put{
				Key:   []byte("a"),
				Value: []byte("x"),
				Cf:    cf,
			},
		},
	}
	require.Nil(t, s.Write(ctx, batch))

	r, err := s.Reader(ctx)
	require.Nil(t, err)
	defer r.Close()
	ret, err := r.GetCF(cf, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("x"), ret)

	ret, err = r.GetCF(cf, []byte("missing"))
	require.Nil(t, err)
	assert.Nil(t, ret)
}

func TestIterCF(t *testing.T) {
	s, cleanUp := newTestStorage(t)
	defer cleanUp()

	cf := engine_util.CfEntry
	ctx := context.Background()
	batch := []storage.Modify{
		{Data: storage.Put{Key: []byte("a"), Value: []byte("x"), Cf: cf}},
		{Data: storage.Put{Key: []byte("b"), Value: []byte("y"), Cf: cf}},
		{Data: storage.Put{Key: []byte("a"), Value: []byte("m"), Cf: engine_util.CfMeta}},
	}
	require.Nil(t, s.Write(ctx, batch))

	r, err := s.Reader(ctx)
	require.Nil(t, err)
	defer r.Close()
	iter := r.IterCF(cf)
	iter.Seek([]byte("a"))
	item := iter.Item()
	assert.Equal(t, []byte("a"), item.Key())
	val, _ := item.Value()
	assert.Equal(t, []byte("x"), val)

	iter.Next()
	item = iter.Item()
	assert.Equal(t, []byte("b"), item.Key())
	val, _ = item.Value()
	assert.Equal(t, []byte("y"), val)

	iter.Next()
	assert.False(t, iter.Valid())
	iter.Close()
}

func TestReaderSnapshot(t *testing.T) {
	s, cleanUp := newTestStorage(t)
	defer cleanUp()

	ctx := context.Background()
	cf := engine_util.CfMeta
	require.Nil(t, s.Write(ctx, []storage.Modify{{Data: storage.Put{Key: []byte("c"), Value: []byte{1}, Cf: cf}}}))

	r, err := s.Reader(ctx)
	require.Nil(t, err)
	defer r.Close()

	require.Nil(t, s.Write(ctx, []storage.Modify{
		{Data: storage.Put{Key: []byte("c"), Value: []byte{2}, Cf: cf}},
		{Data: storage.Delete{Key: []byte("missing"), Cf: cf}},
	}))

	val, err := r.GetCF(cf, []byte("c"))
	require.Nil(t, err)
	assert.Equal(t, []byte{1}, val)

	r2, err := s.Reader(ctx)
	require.Nil(t, err)
	defer r2.Close()
	val, err = r2.GetCF(cf, []byte("c"))
	require.Nil(t, err)
	assert.Equal(t, []byte{2}, val)
}
