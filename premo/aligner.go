package premo

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"v.io/x/lib/lookpath"
	"v.io/x/lib/vlog"
)

const (
	mosaikBuild   = "MosaikBuild"
	mosaikAligner = "MosaikAligner"
)

// Command is one invocation of an external program.
type Command struct {
	Path string
	Args []string
	// LogPath, if set, receives the command's stdout and stderr. The log is
	// appended to, so several commands may share it.
	LogPath string
}

func (c Command) String() string {
	s := c.Path
	if len(c.Args) > 0 {
		s += " " + strings.Join(c.Args, " ")
	}
	if c.LogPath != "" {
		s += " >> " + c.LogPath
	}
	return s
}

// Runner finds and runs external commands. Run blocks until the command
// exits and returns a non-nil error unless it exited with status 0.
type Runner interface {
	// LookPath resolves the executable name inside dir.
	LookPath(dir, name string) (string, error)
	Run(ctx context.Context, cmd Command) error
}

// ExternalProcessError reports a command that could not be started or
// that exited with a non-zero status.
type ExternalProcessError struct {
	Command Command
	Err     error
	// Stderr is the tail of what the command wrote to stderr.
	Stderr string
}

func (e *ExternalProcessError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// stderrTail bounds the amount of stderr kept for error messages.
const stderrTail = 4 << 10

// LookPath implements Runner. Only dir is searched.
func (ExecRunner) LookPath(dir, name string) (string, error) {
	env := map[string]string{"PATH": strings.TrimSuffix(dir, string(os.PathSeparator))}
	return lookpath.Look(env, name)
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	vlog.VI(1).Infof("running: %s", cmd)
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	tail := &tailWriter{max: stderrTail}
	if cmd.LogPath != "" {
		logFile, err := os.OpenFile(cmd.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return errors.E(err, "could not open log file:", cmd.LogPath)
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				log.Error.Printf("close %s: %v", cmd.LogPath, err)
			}
		}()
		c.Stdout = logFile
		c.Stderr = io.MultiWriter(logFile, tail)
	} else {
		c.Stdout = os.Stderr
		c.Stderr = io.MultiWriter(os.Stderr, tail)
	}
	if err := c.Run(); err != nil {
		return &ExternalProcessError{Command: cmd, Err: err, Stderr: strings.TrimSpace(string(tail.buf))}
	}
	return nil
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if n := len(w.buf); n > w.max {
		w.buf = append(w.buf[:0], w.buf[n-w.max:]...)
	}
	return len(p), nil
}

// Mosaik builds the MosaikBuild and MosaikAligner command lines for a
// batch.
type Mosaik struct {
	BuildPath string
	AlignPath string
	opts      Opts
}

// NewMosaik returns the commands for the binaries in opts.MosaikPath,
// which must already be normalized by Validate. The binaries are not
// checked for existence; see LookupMosaik.
func NewMosaik(opts Opts) Mosaik {
	return Mosaik{
		BuildPath: opts.MosaikPath + mosaikBuild,
		AlignPath: opts.MosaikPath + mosaikAligner,
		opts:      opts,
	}
}

// LookupMosaik is NewMosaik, but it resolves both binaries inside
// opts.MosaikPath with runner and reports a missing one as a *ConfigError.
func LookupMosaik(opts Opts, runner Runner) (Mosaik, error) {
	m := NewMosaik(opts)
	cerr := &ConfigError{}
	for _, p := range []*string{&m.BuildPath, &m.AlignPath} {
		name := (*p)[len(opts.MosaikPath):]
		resolved, err := runner.LookPath(opts.MosaikPath, name)
		if err != nil {
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("-mosaik: %s not found in %s", name, opts.MosaikPath))
			continue
		}
		*p = resolved
	}
	if !cerr.empty() {
		return m, cerr
	}
	return m, nil
}

// BuildCommand returns the MosaikBuild invocation that turns the mate
// files fq1 and fq2 into the read archive.
func (m Mosaik) BuildCommand(fq1, fq2, archive, logPath string) Command {
	cmd := Command{
		Path: m.BuildPath,
		Args: []string{
			"-q", fq1,
			"-q2", fq2,
			"-out", archive,
			"-st", m.opts.SeqTech,
		},
	}
	return m.quiet(cmd, logPath)
}

// AlignCommand returns the MosaikAligner invocation that aligns archive
// and writes <stub>.bam and its companions.
func (m Mosaik) AlignCommand(archive, stub, logPath string) Command {
	o := m.opts
	cmd := Command{
		Path: m.AlignPath,
		Args: []string{
			"-ia", o.ReferencePath,
			"-in", archive,
			"-out", stub,
			"-annpe", o.AnnPePath,
			"-annse", o.AnnSePath,
			"-hs", strconv.Itoa(o.HashSize),
			"-mhp", strconv.Itoa(o.Mhp),
			"-mmp", strconv.FormatFloat(o.Mmp, 'g', -1, 64),
			"-p", strconv.Itoa(o.NumProcessors),
			"-kd", "-pd",
		},
	}
	if o.JumpDbStub != "" {
		cmd.Args = append(cmd.Args, "-j", o.JumpDbStub)
	}
	return m.quiet(cmd, logPath)
}

func (m Mosaik) quiet(cmd Command, logPath string) Command {
	if !m.opts.Verbose {
		cmd.Args = append(cmd.Args, "-quiet")
		cmd.LogPath = logPath
	}
	return cmd
}
