package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/juzeexs/lanches-bebidas/internal/checkout"
	"go.uber.org/zap"
)

// ViewRecorder is the rendering collaborator of a session. It keeps the last
// rendered view as JSON together with an ETag over its content.
type ViewRecorder struct {
	mu      sync.RWMutex
	body    []byte
	etag    string
	version uint64
	logger  *zap.Logger
}

func NewViewRecorder(logger *zap.Logger) *ViewRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewRecorder{logger: logger}
}

func (r *ViewRecorder) Render(v checkout.View) {
	r.Record(v)
}

// Record stores v and returns its JSON encoding and ETag. The version only
// moves when the content changes.
func (r *ViewRecorder) Record(v checkout.View) ([]byte, string) {
	body, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to encode checkout view", zap.Error(err))
		return nil, ""
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))

	r.mu.Lock()
	defer r.mu.Unlock()
	if etag != r.etag {
		r.version++
	}
	r.body = body
	r.etag = etag
	return body, etag
}

// Latest returns the last recorded view. body is nil before the first render.
func (r *ViewRecorder) Latest() (body []byte, etag string, version uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.body, r.etag, r.version
}
