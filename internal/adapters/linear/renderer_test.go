package linear_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.trai.ch/tend/internal/adapters/linear"
	"go.trai.ch/zerr"
)

func TestRenderer_TaskLifecycle(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnTaskStart("span1", "", "concat:js", startTime)

	if !strings.Contains(stderr.String(), "[concat:js]") || !strings.Contains(stderr.String(), "Starting...") {
		t.Errorf("Expected task start message, got: %s", stderr.String())
	}

	r.OnTaskLog("span1", []byte("first line\n"))
	r.OnTaskLog("span1", []byte("second line\n"))

	want := "[concat:js] first line\n[concat:js] second line\n"
	if stdout.String() != want {
		t.Errorf("Expected %q in stdout, got: %q", want, stdout.String())
	}

	r.OnTaskComplete("span1", startTime.Add(100*time.Millisecond), nil)

	if !strings.Contains(stderr.String(), "Completed in 100ms") {
		t.Errorf("Expected completion message, got: %s", stderr.String())
	}

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestRenderer_PartialLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnTaskStart("span1", "", "exec:build", startTime)

	r.OnTaskLog("span1", []byte("partial"))
	if strings.Contains(stdout.String(), "partial") {
		t.Errorf("Partial line should not be printed immediately")
	}

	r.OnTaskLog("span1", []byte(" line\r\nrest"))
	if !strings.Contains(stdout.String(), "[exec:build] partial line\n") {
		t.Errorf("Expected complete line, got: %q", stdout.String())
	}

	r.OnTaskComplete("span1", startTime.Add(50*time.Millisecond), nil)
	if !strings.Contains(stdout.String(), "[exec:build] rest\n") {
		t.Errorf("Expected flushed partial line on complete, got: %q", stdout.String())
	}
}

func TestRenderer_Flush(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnTaskStart("span1", "", "watch", time.Now())
	r.OnTaskLog("span1", []byte("waiting"))

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if stdout.String() != "[watch] waiting\n" {
		t.Errorf("Expected flushed line, got: %q", stdout.String())
	}
}

func TestRenderer_TaskError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnTaskStart("span1", "", "uglify", startTime)
	r.OnTaskComplete("span1", startTime.Add(50*time.Millisecond), zerr.New("minify failed"))

	stderrStr := stderr.String()
	if !strings.Contains(stderrStr, "Failed after 50ms") {
		t.Errorf("Expected failure message, got: %s", stderrStr)
	}
	if !strings.Contains(stderrStr, "minify failed") {
		t.Errorf("Expected error message, got: %s", stderrStr)
	}
}

func TestRenderer_UnknownSpanIgnored(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnTaskLog("ghost", []byte("lost\n"))
	r.OnTaskComplete("ghost", time.Now(), nil)

	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("Expected no output for unknown span, got stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestRenderer_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnTaskStart("span1", "", "concat", startTime)
	r.OnTaskComplete("span1", startTime.Add(50*time.Millisecond), nil)

	if strings.Contains(stderr.String(), "\x1b[") {
		t.Errorf("Expected no ANSI codes with NO_COLOR, got: %s", stderr.String())
	}
}
