// Package imgrec names output files for recordings and snapshots.
package imgrec

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Sequence hands out file names with incrementing counters in yyyy-mm-dd subfolders.  It is not thread safe.
type Sequence struct {
	// counter is the number given to the next file
	counter int

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Ext is the file extension, including the dot
	Ext string

	// timeFldr is the subfolder with yyyy-mm-dd format.
	timeFldr string

	// now is time.Now, replaceable in tests
	now func() time.Time
}

// updateFolder checks the current time and updates the folder as needed.
// Crossing midnight restarts the numbering.
func (s *Sequence) updateFolder() {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	t := now()
	fldr := fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
	if fldr != s.timeFldr {
		s.timeFldr = fldr
		s.counter = 0
	}
}

// mkDir makes the folder and returns it
func (s *Sequence) mkDir() (string, error) {
	fldr := filepath.Join(s.Root, s.timeFldr)
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// Next returns the path for the next file, creating its folder.
// Files already in the folder are never reused.
func (s *Sequence) Next() (string, error) {
	s.updateFolder()
	if s.counter == 0 {
		if err := s.Incr(); err != nil {
			return "", err
		}
	}
	fldr, err := s.mkDir()
	if err != nil {
		return "", err
	}
	fn := fmt.Sprintf("%s%06d%s", s.Prefix, s.counter, s.Ext)
	s.counter++
	return filepath.Join(fldr, fn), nil
}

// Incr updates the filename counter to one past the highest numbered file
// in the current folder.  If there is an error, the counter is not changed.
func (s *Sequence) Incr() error {
	s.updateFolder()
	dn, err := s.mkDir()
	if err != nil {
		return err
	}
	files, err := os.ReadDir(dn)
	if err != nil {
		return err
	}
	count := 0
	for _, file := range files {
		// skip directories, wrong extension, and wrong prefix
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, s.Ext) || !strings.HasPrefix(fn, s.Prefix) {
			continue
		}
		bit := strings.TrimSuffix(strings.TrimPrefix(fn, s.Prefix), s.Ext)
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	s.counter = count + 1
	return nil
}
