package agent

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

type fakeTaskStore struct {
	tasks map[string]*TaskConfig
}

func (f *fakeTaskStore) ResolveTask(_ context.Context, name string) (*TaskConfig, error) {
	t, ok := f.tasks[name]
	if !ok {
		return nil, types.NewTaskNotFoundError(name)
	}
	cp := *t
	return &cp, nil
}

type fakeHistory struct {
	threads map[string][]types.Message
	limits  []int
	mu      sync.Mutex
}

func (f *fakeHistory) GetRecentMessages(_ context.Context, threadID string, limit int) ([]types.Message, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	msgs := f.threads[threadID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]types.Message(nil), msgs...), nil
}

type fakeTools map[string]types.ToolDefinition

func (f fakeTools) Resolve(ids []string) ([]types.ToolDefinition, error) {
	out := make([]types.ToolDefinition, 0, len(ids))
	for _, id := range ids {
		d, ok := f[id]
		if !ok {
			return nil, types.NewToolNotFoundError(id)
		}
		out = append(out, d)
	}
	return out, nil
}

// scriptedProvider replays one script per call; the last script repeats.
type scriptedProvider struct {
	name    string
	scripts [][]llm.StreamChunk
	mu      sync.Mutex
	calls   int
	reqs    []*llm.GenerateRequest
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) GenerateResponse(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	p.mu.Lock()
	i := p.calls
	if i >= len(p.scripts) {
		i = len(p.scripts) - 1
	}
	p.calls++
	p.reqs = append(p.reqs, req.Clone())
	script := p.scripts[i]
	p.mu.Unlock()

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range script {
			if !llm.Send(ctx, ch, c) {
				return
			}
		}
	}()
	return ch, nil
}

type recordedGeneration struct {
	provider, model, status string
}

type fakeRecorder struct {
	mu          sync.Mutex
	generations []recordedGeneration
	retries     int
	chunks      map[string]int
}

func (r *fakeRecorder) RecordGeneration(provider, model, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, recordedGeneration{provider, model, status})
}

func (r *fakeRecorder) RecordRetry(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *fakeRecorder) RecordChunk(_, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunks == nil {
		r.chunks = make(map[string]int)
	}
	r.chunks[kind]++
}

func (r *fakeRecorder) snapshot() ([]recordedGeneration, int, map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunks := make(map[string]int, len(r.chunks))
	for k, v := range r.chunks {
		chunks[k] = v
	}
	return append([]recordedGeneration(nil), r.generations...), r.retries, chunks
}
