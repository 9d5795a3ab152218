package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"marquee/internal/config"
	"marquee/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks relevant to a stage. The credential is only
// checked when network is true.
func RunAll(cfg *config.Config, network bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if network {
		results = append(results, CheckAPIKey(cfg.KOBIS.APIKey))
	}
	results = append(results,
		CheckDirectoryAccess("Movies directory", cfg.Paths.MoviesDir),
		CheckDirectoryAccess("Years directory", cfg.Paths.YearsDir),
		CheckDirectoryAccess("Search directory", cfg.Paths.SearchDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	)
	return results
}

// CheckAPIKey verifies that an upstream credential is configured. It never
// calls the API, so no quota is spent.
func CheckAPIKey(apiKey string) Result {
	const name = "KOBIS API key"
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return Result{Name: name, Detail: "missing (set KOFIC_API_KEY or kobis.api_key)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured (" + maskKey(key) + ")"}
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// CheckDirectoryAccess reports whether path is an existing directory the
// process can list, read and write.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	fail := func(reason string) Result {
		return Result{Name: name, Detail: path + ": " + reason}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail(err.Error())
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("access denied (" + err.Error() + ")")
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// Err joins the failed results into one configuration error, or returns nil.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", "", errors.Join(errs...))
}
