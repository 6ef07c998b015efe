// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/delivery"
	"github.com/xkilldash9x/bulksend/internal/orchestrator"
)

// testWorkspace is a temporary directory with a contact table, a template
// and a config file pointing at both.
type testWorkspace struct {
	dir        string
	configPath string
	resultsDir string
}

const testContacts = `Name,Contact No
Asha Rao,9876543210
Dr Vikram Shah,09123456789
Meera,+447700900123
`

func newTestWorkspace(t *testing.T) *testWorkspace {
	t.Helper()
	dir := t.TempDir()
	ws := &testWorkspace{
		dir:        dir,
		configPath: filepath.Join(dir, "bulksend.yaml"),
		resultsDir: filepath.Join(dir, "results"),
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.csv"), []byte(testContacts), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "template.txt"), []byte("Hi {first_name}!"), 0o600))
	ws.writeConfig(t, "")
	return ws
}

// writeConfig writes the base config followed by extra YAML.
func (ws *testWorkspace) writeConfig(t *testing.T, extra string) {
	t.Helper()
	cfg := fmt.Sprintf(`
logger:
  level: error
  log_file: ""
contacts:
  path: %[1]s/contacts.csv
message:
  templates:
    - %[1]s/template.txt
results:
  dir: %[1]s/results
browser:
  profile_dir: %[1]s/profile
pacing:
  short_delay: {min: 0, max: 0}
  long_break: {min: 0, max: 0}
  message_threshold: {min: 1, max: 1}
  settle_delay: {min: 0, max: 0}
%[2]s`, filepath.ToSlash(ws.dir), extra)
	require.NoError(t, os.WriteFile(ws.configPath, []byte(cfg), 0o600))
}

func (ws *testWorkspace) readResult(t *testing.T, parts ...string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(append([]string{ws.resultsDir}, parts...)...))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// executeCommand runs a fresh command tree and returns its output.
func executeCommand(ctx context.Context, args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// stubFleet replaces the browser runners with in-memory ones that answer
// with a fixed outcome per contact name.
type stubFleet struct {
	mu       sync.Mutex
	workers  int
	calls    []string
	outcomes map[string]schemas.Outcome
	// after runs once a contact has been processed.
	after func(c schemas.Contact)
}

type stubRunner struct{ fleet *stubFleet }

func (r stubRunner) Run(ctx context.Context, c schemas.Contact, intent schemas.MessageIntent) schemas.Outcome {
	f := r.fleet
	f.mu.Lock()
	f.calls = append(f.calls, c.Name+": "+intent.Body)
	out, ok := f.outcomes[c.Name]
	after := f.after
	f.mu.Unlock()
	if after != nil {
		after(c)
	}
	if !ok {
		return schemas.Sent()
	}
	return out
}

func installStubFleet(t *testing.T, outcomes map[string]schemas.Outcome) *stubFleet {
	t.Helper()
	fleet := &stubFleet{outcomes: outcomes}
	original := startRunners
	t.Cleanup(func() { startRunners = original })

	startRunners = func(ctx context.Context, cfg *config.Config, n int, settler delivery.Settler, logger *zap.Logger) ([]orchestrator.Runner, func(), error) {
		fleet.mu.Lock()
		fleet.workers = n
		fleet.mu.Unlock()
		runners := make([]orchestrator.Runner, n)
		for i := range runners {
			runners[i] = stubRunner{fleet: fleet}
		}
		return runners, func() {}, nil
	}
	return fleet
}

func (f *stubFleet) snapshot() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workers, append([]string(nil), f.calls...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
