package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	dataDir    string
	stateDir   string
	server     *httptest.Server
	infoCalls  atomic.Int64
	quota      atomic.Bool
}

// setupCLITestEnv starts a fake catalog API and writes a config pointing at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("KOFIC_API_KEY", "")

	env := &cliTestEnv{
		baseDir:  base,
		dataDir:  filepath.Join(base, "data"),
		stateDir: filepath.Join(base, "state"),
	}
	env.server = httptest.NewServer(http.HandlerFunc(env.serveAPI))
	t.Cleanup(env.server.Close)

	env.configPath = filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
state_dir = %q
log_dir = %q

[kobis]
api_key = "test"
base_url = %q
daily_quota = 0
rate_interval_ms = 0
backoff_initial_ms = 1
backoff_max_ms = 2
request_timeout = 5

[logging]
level = "error"
retention_days = 0
`, env.dataDir, env.stateDir, filepath.Join(base, "logs"), env.server.URL)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) serveAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()
	switch r.URL.Path {
	case "/movie/searchMovieList.json":
		if q.Get("curPage") != "1" || q.Get("openStartDt") != "2020" {
			_, _ = w.Write([]byte(`{"movieListResult":{"totCnt":0,"movieList":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"movieListResult":{"totCnt":2,"movieList":[` +
			`{"movieCd":"20200001","movieNm":"하나"},{"movieCd":"20200002","movieNm":"둘"}]}}`))
	case "/movie/searchMovieInfo.json":
		e.infoCalls.Add(1)
		if e.quota.Load() {
			_, _ = w.Write([]byte(`{"faultInfo":{"message":"키 사용량이 초과되었습니다.","errorCode":"320011"}}`))
			return
		}
		id := q.Get("movieCd")
		fmt.Fprintf(w, `{"movieInfoResult":{"movieInfo":{"movieCd":%q,"movieNm":"제목 %s","openDt":"20200115",`+
			`"nations":[{"nationNm":"한국"}],"directors":[{"peopleNm":"김감독","peopleNmEn":"Kim"}],`+
			`"actors":[{"peopleNm":"이배우","cast":"주인공"}]}}}`, id, id)
	case "/boxoffice/searchWeeklyBoxOfficeList.json":
		_, _ = w.Write([]byte(`{"boxOfficeResult":{"boxofficeType":"주간","weeklyBoxOfficeList":[]}}`))
	default:
		http.NotFound(w, r)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
