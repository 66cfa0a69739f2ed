package directory

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pelusa-v/pelusa-spaces/internal/devserver"
	"github.com/pelusa-v/pelusa-spaces/internal/handlers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type relay struct {
	dir  *Directory
	hits *int32
}

func newRelay(t *testing.T) relay {
	t.Helper()
	hub := devserver.NewHub(devserver.NewSpaces("general"), nil)
	app := handlers.NewApp(hub, "", nil)
	h := app.Handler()

	var hits int32
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(&hits, 1)
		h(ctx)
	}}
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return relay{dir: New("http://relay.test/api/", client, time.Second, nil), hits: &hits}
}

func TestLoadAll_FillsCache(t *testing.T) {
	r := newRelay(t)

	spaces, err := r.dir.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "general", spaces[0].ID)

	def, ok := r.dir.Default()
	require.True(t, ok)
	assert.Equal(t, "general", def.ID)

	_, ok = r.dir.Lookup("random")
	assert.False(t, ok)
}

func TestCreate_RefreshesList(t *testing.T) {
	r := newRelay(t)

	sp, err := r.dir.Create(context.Background(), "  Random ", "off topic", "ana")
	require.NoError(t, err)
	assert.Equal(t, "random", sp.ID)
	assert.Equal(t, "ana", sp.CreatedBy)

	got, ok := r.dir.Lookup("random")
	require.True(t, ok)
	assert.Equal(t, "off topic", got.Description)
	assert.Len(t, r.dir.Spaces(), 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(r.hits), "create then list")
}

func TestCreate_BlankNameSendsNothing(t *testing.T) {
	r := newRelay(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := r.dir.Create(context.Background(), name, "", "ana")
		var verr *chat.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "name", verr.Field)
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(r.hits))
}

func TestCreate_DuplicateSurfacesServerMessage(t *testing.T) {
	r := newRelay(t)
	ctx := context.Background()

	_, err := r.dir.Create(ctx, "random", "", "ana")
	require.NoError(t, err)

	_, err = r.dir.Create(ctx, "Random", "", "ben")
	require.Error(t, err)

	var derr *chat.DirectoryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, fasthttp.StatusConflict, derr.Status)
	assert.Equal(t, devserver.ErrSpaceExists.Error(), derr.Message)
	assert.True(t, errors.Is(err, chat.ErrDuplicate))
	assert.Len(t, r.dir.Spaces(), 2, "cache untouched by the failed create")
}

func TestLoadAll_CancelledContext(t *testing.T) {
	r := newRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.dir.LoadAll(ctx)
	var derr *chat.DirectoryError
	require.True(t, errors.As(err, &derr))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.EqualValues(t, 0, atomic.LoadInt32(r.hits))
}
