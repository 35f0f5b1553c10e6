package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadPIDs returns every PID listed in path, one per line. A missing file
// holds no PIDs.
func ReadPIDs(path string) ([]int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}
	defer f.Close()

	var pids []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil || pid <= 0 {
			return nil, fmt.Errorf("%w: %q in %s", ErrBadPIDFile, line, path)
		}
		pids = append(pids, pid)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pid file: %w", err)
	}
	return pids, nil
}

// AppendPID adds pid to path, creating the file if needed.
func AppendPID(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		f.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	return f.Close()
}

// RemovePIDFile deletes path; a missing file is fine.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// Running returns the first PID in path that names a live process.
func Running(path string) (int, bool, error) {
	pids, err := ReadPIDs(path)
	if err != nil {
		return 0, false, err
	}
	for _, pid := range pids {
		if alive(pid) {
			return pid, true, nil
		}
	}
	return 0, false, nil
}
