// CLI integration tests for chronicle. These exercise the built binary
// end to end, including the exit-code contract the maintenance tools
// promise: 0 clean, 1 issues found, 2 escalation.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var chronicleBin string

// TestMain builds the chronicle binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		os.Exit(1)
	}
	tmpDir, err := os.MkdirTemp("", "chronicle-test-*")
	if err != nil {
		os.Exit(1)
	}
	chronicleBin = filepath.Join(tmpDir, "chronicle")

	cmd := exec.Command("go", "build", "-o", chronicleBin, "./cmd/chronicle")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Stderr.WriteString("build failed: " + err.Error() + "\n" + string(output))
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// runChronicle runs the binary against isolated config, data, and
// archive directories and returns stdout plus the process exit code.
func runChronicle(t *testing.T, dirs cliDirs, args ...string) (string, int) {
	t.Helper()
	full := append([]string{
		"--config-dir", dirs.config,
		"--data-dir", dirs.data,
		"--archive-root", dirs.archive,
	}, args...)
	cmd := exec.Command(chronicleBin, full...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running chronicle %v: %v", args, err)
	}
	t.Logf("chronicle %v -> exit %d\nstdout:\n%s\nstderr:\n%s",
		args, code, stdout.String(), stderr.String())
	return stdout.String(), code
}

type cliDirs struct {
	config, data, archive string
}

func newCLIDirs(t *testing.T) cliDirs {
	t.Helper()
	base := t.TempDir()
	return cliDirs{
		config:  filepath.Join(base, "config"),
		data:    filepath.Join(base, "db"),
		archive: filepath.Join(base, "archive"),
	}
}

func TestCLIImportPartialFailureExitsOne(t *testing.T) {
	dirs := newCLIDirs(t)

	_, code := runChronicle(t, dirs, "init")
	require.Equal(t, 0, code, "init must succeed")

	usersPath := filepath.Join(dirs.archive, "users", "2024_03_users.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(usersPath), 0o755))
	require.NoError(t, os.WriteFile(usersPath,
		[]byte("March 05 2024 at 09:00|Jane Doe|jane@example.org\n"), 0o644))

	// Three mark lines; line 2 carries a malformed timestamp. The bad
	// line is isolated, counted, and surfaces as exit code 1.
	marksPath := filepath.Join(dirs.archive, "marks", "marks_2024_03.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(marksPath), 0o755))
	content := "March 05 2024 at 10:15|p-001|Jane Doe\n" +
		"garbage timestamp|p-001|Jane Doe\n" +
		"March 05 2024 at 10:17|p-002|Jane Doe\n"
	require.NoError(t, os.WriteFile(marksPath, []byte(content), 0o644))

	out, code := runChronicle(t, dirs, "import", "--execute")
	require.Equal(t, 1, code, "partial failure must exit 1")
	require.Contains(t, out, "2 imported")
	require.Contains(t, out, "1 failed")

	// A second run imports nothing new but still reports the bad line.
	out, code = runChronicle(t, dirs, "import", "--execute")
	require.Equal(t, 1, code)
	require.Contains(t, out, "0 imported")
	require.Contains(t, out, "2 skipped")
}

func TestCLICleanImportAndValidateExitZero(t *testing.T) {
	dirs := newCLIDirs(t)

	_, code := runChronicle(t, dirs, "init")
	require.Equal(t, 0, code)

	_, code = runChronicle(t, dirs, "import", "--execute")
	require.Equal(t, 0, code, "empty archive imports cleanly")

	_, code = runChronicle(t, dirs, "validate")
	require.Equal(t, 0, code, "empty stores validate cleanly")
}

func TestCLIMissingArchiveRootExitsTwo(t *testing.T) {
	dirs := newCLIDirs(t)
	_, code := runChronicle(t, dirs, "init")
	require.Equal(t, 0, code)

	require.NoError(t, os.RemoveAll(dirs.archive))
	_, code = runChronicle(t, dirs, "import", "--execute")
	require.Equal(t, 2, code, "missing archive root is an environment failure")
}
