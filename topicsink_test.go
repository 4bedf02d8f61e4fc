package topicsink_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/topicsink"
	"github.com/miladsoleymani/topicsink/config"
	"github.com/miladsoleymani/topicsink/internal/mock"
	"github.com/miladsoleymani/topicsink/sink"
)

func TestNew_RecordsToFile(t *testing.T) {
	dir := t.TempDir()
	fleet := mock.NewFleet()
	src := config.NewStatic(topicsink.Record{Name: "temp", Topic: "sensors/+/temp", Host: "localhost", Port: "1883"})

	r := topicsink.New(src,
		topicsink.WithBrokerFactory(fleet.NewBroker),
		topicsink.WithSinkFactory(sink.NewDir(dir).Open),
	)

	ctx := context.Background()
	res := r.Reconcile(ctx)
	require.Len(t, res.Started, 1)

	b, _ := fleet.Latest(res.Started[0])
	require.NotNil(t, b)
	require.NoError(t, b.Deliver(ctx, "sensors/kitchen/temp", []byte("21.5")))
	require.NoError(t, b.Deliver(ctx, "sensors/hall/temp", []byte("19.0")))

	src.Update()
	res = r.Reconcile(ctx)
	require.Len(t, res.Stopped, 1)
	assert.True(t, b.IsClosed())

	data, err := os.ReadFile(filepath.Join(dir, "temp.raw"))
	require.NoError(t, err)
	assert.Equal(t, "21.5\n19.0\n", string(data))
}
