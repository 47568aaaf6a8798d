package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/algolens/algolens/internal/dispatch"
	"github.com/algolens/algolens/internal/model"
)

// echoExecutor returns a canned payload for sandboxed runs.
type echoExecutor struct {
	output json.RawMessage
}

func (e *echoExecutor) Run(ctx context.Context, _ *model.ExecutionJob) (dispatch.SandboxResult, error) {
	return dispatch.SandboxResult{Output: e.output}, nil
}

func (e *echoExecutor) Capabilities() dispatch.ExecutorCapabilities {
	return dispatch.ExecutorCapabilities{Name: "echo", Languages: []string{model.LanguagePython}}
}

func TestRunSubsetsLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	executionID := submitRun(t, ts.URL, testUser)
	job := waitForJobStatus(t, ts.URL, testUser, executionID, model.StatusSuccess)

	var out struct {
		Solutions [][]int `json:"solutions"`
		Count     int     `json:"count"`
		Steps     int     `json:"steps"`
	}
	if err := json.Unmarshal(job.Output, &out); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if out.Count != 8 {
		t.Errorf("solution count = %d, want 8", out.Count)
	}
	if out.Steps != 22 {
		t.Errorf("step count = %d, want 22", out.Steps)
	}
	if job.CompletedAt == nil {
		t.Error("completed job has no completedAt timestamp")
	}
}

func TestRunRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/run", testUser, "{not json")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRunValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{
			name:       "unsupported language",
			body:       `{"algorithm":"subsets","language":"cobol","input":{"numbers":[1]}}`,
			wantReason: "unsupported language",
		},
		{
			name:       "missing input",
			body:       `{"algorithm":"subsets","language":"python"}`,
			wantReason: "input is required",
		},
		{
			name:       "empty numbers",
			body:       `{"algorithm":"subsets","language":"python","input":{"numbers":[]}}`,
			wantReason: "must not be empty",
		},
		{
			name:       "oversized input",
			body:       `{"algorithm":"subsets","language":"python","input":{"numbers":[1,2,3,4,5,6,7,8,9,10,11]}}`,
			wantReason: "exceeds maximum length",
		},
		{
			name:       "negative timeout",
			body:       `{"algorithm":"subsets","language":"python","input":{"numbers":[1]},"timeoutMs":-5}`,
			wantReason: "must not be negative",
		},
		{
			name:       "sandbox without code",
			body:       `{"algorithm":"nqueens","language":"python"}`,
			wantReason: "code is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/run", testUser, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var body map[string]string
			decodeBody(t, resp, &body)
			if !strings.Contains(body["error"], tt.wantReason) {
				t.Errorf("error = %q, want it to mention %q", body["error"], tt.wantReason)
			}
		})
	}
}

func TestRunSandboxWithoutExecutorEndsInError(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"algorithm":"nqueens","language":"python","code":"print(1)"}`
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/run", testUser, body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var ack runResponse
	decodeBody(t, resp, &ack)

	job := waitForJobStatus(t, ts.URL, testUser, ack.ExecutionID, model.StatusError)
	if !strings.Contains(job.Error, "no sandbox executor") {
		t.Errorf("job error = %q, want executor resolution failure", job.Error)
	}
}

func TestRunSandboxExecutorSuccess(t *testing.T) {
	executors := dispatch.NewExecutorRegistry()
	executors.Register(model.LanguagePython, &echoExecutor{output: json.RawMessage(`{"result":42}`)})

	srv := newTestServerWithExecutors(t, executors)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"algorithm":"nqueens","language":"python","code":"print(1)"}`
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/run", testUser, body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var ack runResponse
	decodeBody(t, resp, &ack)

	job := waitForJobStatus(t, ts.URL, testUser, ack.ExecutionID, model.StatusSuccess)
	if string(job.Output) != `{"result":42}` {
		t.Errorf("job output = %s, want echoed payload", job.Output)
	}
}
