package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type retrieverFake struct {
	results []domain.RankedResult
	err     error
	topK    int
	minimum float64
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, topK int, scoreThreshold float64) (*domain.Retrieval, error) {
	f.topK = topK
	f.minimum = scoreThreshold
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Retrieval{Results: f.results}, nil
}

type memoryFake struct {
	mu      sync.Mutex
	history string
	loadErr error
	saveErr error
	saved   [][2]string
}

func (f *memoryFake) Load(context.Context) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	return f.history, nil
}

func (f *memoryFake) Save(_ context.Context, input, output string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, [2]string{input, output})
	return nil
}

func TestRespondCitesRetrievedChunks(t *testing.T) {
	retriever := &retrieverFake{results: []domain.RankedResult{
		{ChunkID: "report1_pg3_ch1", DocID: "report1", PageNum: "3", Content: "Revenue grew 12%.", Score: domain.Score(0.9)},
		{ChunkID: "report1_pg4_ch1", DocID: "report1", PageNum: "4", Content: "Costs fell.", Score: domain.Score(0.7)},
	}}
	model := &chatModelFake{replies: []string{"According to report1 page 3, revenue grew 12%."}}
	memory := &memoryFake{history: "Human: hi\nAI: hello"}
	agent := NewConversationalAgent("s1", retriever, model, memory, RetrievalSettings{TopK: 5, ScoreThreshold: 0.4}, nil)

	reply, err := agent.Respond(context.Background(), "How did revenue change?")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.SessionID != "s1" || len(reply.Retrieved) != 2 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if retriever.topK != 5 || retriever.minimum != 0.4 {
		t.Fatalf("expected configured retrieval settings, got k=%d threshold=%v", retriever.topK, retriever.minimum)
	}

	prompt := model.calls[0][len(model.calls[0])-1].Content
	for _, want := range []string{
		"How did revenue change?",
		"Human: hi\nAI: hello",
		"[report1 pg 3] Revenue grew 12%.",
		"[report1 pg 4] Costs fell.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if len(memory.saved) != 1 || memory.saved[0][0] != "How did revenue change?" || memory.saved[0][1] != reply.Reply {
		t.Fatalf("expected exchange saved to memory, got %v", memory.saved)
	}
}

func TestRespondWithNoEvidenceStillGenerates(t *testing.T) {
	model := &chatModelFake{replies: []string{"I don't know."}}
	agent := NewConversationalAgent("s1", &retrieverFake{}, model, &memoryFake{}, RetrievalSettings{TopK: 5}, nil)

	reply, err := agent.Respond(context.Background(), "unknown topic")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Retrieved != nil && len(reply.Retrieved) != 0 {
		t.Fatalf("expected no evidence, got %v", reply.Retrieved)
	}
	if reply.Reply != "I don't know." {
		t.Fatalf("unexpected reply %q", reply.Reply)
	}
}

func TestRespondErasesFailureStage(t *testing.T) {
	cases := []struct {
		name  string
		agent *ConversationalAgent
		cause error
	}{
		{
			name:  "retrieval",
			agent: NewConversationalAgent("s", &retrieverFake{err: domain.ErrRetrieval}, &chatModelFake{}, &memoryFake{}, RetrievalSettings{}, nil),
			cause: domain.ErrRetrieval,
		},
		{
			name:  "generation",
			agent: NewConversationalAgent("s", &retrieverFake{}, &chatModelFake{errs: []error{errors.New("boom")}}, &memoryFake{}, RetrievalSettings{}, nil),
			cause: domain.ErrGeneration,
		},
		{
			name:  "memory",
			agent: NewConversationalAgent("s", &retrieverFake{}, &chatModelFake{}, &memoryFake{loadErr: errors.New("redis down")}, RetrievalSettings{}, nil),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.agent.Respond(context.Background(), "q")
			if !errors.Is(err, domain.ErrPipeline) {
				t.Fatalf("expected ErrPipeline, got %v", err)
			}
			if errors.Is(err, domain.ErrRetrieval) || errors.Is(err, domain.ErrGeneration) {
				t.Fatalf("stage error leaked through: %v", err)
			}
			if err.Error() != domain.ErrPipeline.Error() {
				t.Fatalf("unexpected message %q", err.Error())
			}
			var pipelineErr *domain.PipelineError
			if !errors.As(err, &pipelineErr) {
				t.Fatalf("expected *domain.PipelineError, got %T", err)
			}
			if tc.cause != nil && !errors.Is(pipelineErr.Cause(), tc.cause) {
				t.Fatalf("expected cause %v, got %v", tc.cause, pipelineErr.Cause())
			}
		})
	}
}

func TestRespondDoesNotSaveFailedTurns(t *testing.T) {
	memory := &memoryFake{}
	agent := NewConversationalAgent("s", &retrieverFake{}, &chatModelFake{errs: []error{errors.New("boom")}}, memory, RetrievalSettings{}, nil)

	if _, err := agent.Respond(context.Background(), "q"); err == nil {
		t.Fatalf("expected error")
	}
	if len(memory.saved) != 0 {
		t.Fatalf("expected nothing saved, got %v", memory.saved)
	}
}

type slowModel struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (m *slowModel) Invoke(context.Context, []domain.ChatMessage) (string, error) {
	m.mu.Lock()
	m.active++
	if m.active > m.maxSeen {
		m.maxSeen = m.active
	}
	m.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	return "ok", nil
}

func TestRespondSerializesCallsPerSession(t *testing.T) {
	model := &slowModel{}
	memory := &memoryFake{}
	agent := NewConversationalAgent("s", &retrieverFake{}, model, memory, RetrievalSettings{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agent.Respond(context.Background(), "q"); err != nil {
				t.Errorf("Respond() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if model.maxSeen != 1 {
		t.Fatalf("expected serialized generation, saw %d concurrent calls", model.maxSeen)
	}
	if len(memory.saved) != 4 {
		t.Fatalf("expected 4 saved turns, got %d", len(memory.saved))
	}
}
