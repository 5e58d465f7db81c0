package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNoStream is returned by Finalize when no chunks were buffered for a user.
var ErrNoStream = errors.New("audio: no buffered stream for user")

const streamFile = "stream.raw"

// Accumulator buffers raw PCM chunks per user on disk until the device signals
// end of stream. Appends and finalizes for the same user are serialized by a
// per-user lock, so overlapping stop/stream requests cannot interleave on the
// same file.
type Accumulator struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAccumulator(dir string) *Accumulator {
	return &Accumulator{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

func (a *Accumulator) userLock(elderlyID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[elderlyID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[elderlyID] = l
	}
	return l
}

// userDir maps an identity to a directory under the data root. Identities come
// out of verified tokens but are still external input, so path separators are
// neutralized before they touch the filesystem.
func (a *Accumulator) userDir(elderlyID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, elderlyID)
	return filepath.Join(a.dir, safe)
}

// Append adds a chunk to the user's open stream, creating it if needed.
func (a *Accumulator) Append(elderlyID string, chunk []byte) error {
	l := a.userLock(elderlyID)
	l.Lock()
	defer l.Unlock()

	dir := a.userDir(elderlyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating stream dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, streamFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening stream file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(chunk); err != nil {
		return fmt.Errorf("appending chunk: %w", err)
	}
	return nil
}

// Finalize consumes the user's buffered stream, encodes it as WAV and writes
// it to a uniquely named file. The raw buffer is removed whether or not
// encoding succeeds, so a corrupt stream does not poison the next check-in.
func (a *Accumulator) Finalize(elderlyID string, gain, sampleRate int) (string, error) {
	l := a.userLock(elderlyID)
	l.Lock()
	defer l.Unlock()

	rawPath := filepath.Join(a.userDir(elderlyID), streamFile)
	raw, err := os.ReadFile(rawPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoStream
	}
	if err != nil {
		return "", fmt.Errorf("reading stream file: %w", err)
	}
	_ = os.Remove(rawPath)

	if len(raw) == 0 {
		return "", ErrNoStream
	}

	wav, err := EncodeWAV(raw, gain, sampleRate)
	if err != nil {
		return "", err
	}

	wavPath := filepath.Join(a.userDir(elderlyID), fmt.Sprintf("checkin-%s.wav", uuid.NewString()))
	if err := os.WriteFile(wavPath, wav, 0o644); err != nil {
		return "", fmt.Errorf("writing wav file: %w", err)
	}
	return wavPath, nil
}

// SaveUpload writes a complete uploaded recording to a uniquely named file in
// the user's directory and returns its path. ext keeps the original container
// suffix so the converter can identify the input format.
func (a *Accumulator) SaveUpload(elderlyID string, r io.Reader, ext string) (string, error) {
	l := a.userLock(elderlyID)
	l.Lock()
	defer l.Unlock()

	dir := a.userDir(elderlyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	if ext == "" {
		ext = ".bin"
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	path := filepath.Join(dir, fmt.Sprintf("upload-%s%s", uuid.NewString(), ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}
