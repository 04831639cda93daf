package launch

import (
	"os"
	"syscall"

	"github.com/mitchellh/go-ps"
	"github.com/sbinet/pstree"
	"github.com/sirupsen/logrus"
)

// processTree returns pid followed by all of its descendants. When the
// process table cannot be read only pid is returned.
func processTree(pid int) []int {
	out := []int{pid}
	tree, err := pstree.New()
	if err != nil {
		logrus.Debugf("launch: reading process tree: %s", err)
		return out
	}
	return appendDescendants(tree, tree.Procs[pid], out)
}

func appendDescendants(tree *pstree.Tree, proc pstree.Process, out []int) []int {
	for _, child := range proc.Children {
		out = append(out, child)
		out = appendDescendants(tree, tree.Procs[child], out)
	}
	return out
}

func signalAll(pids []int, sig syscall.Signal) {
	for _, pid := range pids {
		if err := syscall.Kill(pid, sig); err != nil && err != syscall.ESRCH {
			logrus.Debugf("launch: signal %s to %d: %s", sig, pid, err)
		}
	}
}

// processRunning reports whether another process runs the executable name.
func processRunning(name string) (bool, error) {
	procs, err := ps.Processes()
	if err != nil {
		return false, err
	}
	self := os.Getpid()
	for _, p := range procs {
		if p.Pid() == self {
			continue
		}
		if matchExecutable(p.Executable(), name) {
			return true, nil
		}
	}
	return false, nil
}

// matchExecutable compares a process table name with a program name. Linux
// truncates the former to 15 bytes.
func matchExecutable(table, name string) bool {
	const commLen = 15
	if len(name) > commLen && len(table) == commLen {
		return name[:commLen] == table
	}
	return table == name
}
