package gitcmd

import (
	"reflect"
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	porcelain := "M  staged.go\n" +
		" M unstaged.go\n" +
		"MM both.go\n" +
		"?? new.txt\n" +
		"UU conflicted.go\n" +
		"AA added-both.go\n" +
		"DD deleted-both.go\n" +
		"A  fresh.go\n"

	var status Status
	parsePorcelain(porcelain, &status)

	if want := []string{"staged.go", "both.go", "fresh.go"}; !reflect.DeepEqual(status.Staged, want) {
		t.Fatalf("staged = %v, want %v", status.Staged, want)
	}
	if want := []string{"unstaged.go", "both.go"}; !reflect.DeepEqual(status.Unstaged, want) {
		t.Fatalf("unstaged = %v, want %v", status.Unstaged, want)
	}
	if want := []string{"new.txt"}; !reflect.DeepEqual(status.Untracked, want) {
		t.Fatalf("untracked = %v, want %v", status.Untracked, want)
	}
	if want := []string{"conflicted.go", "added-both.go", "deleted-both.go"}; !reflect.DeepEqual(status.Conflicts, want) {
		t.Fatalf("conflicts = %v, want %v", status.Conflicts, want)
	}
}

func TestParsePorcelainSkipsShortLines(t *testing.T) {
	var status Status
	parsePorcelain("M\n\nxx\n", &status)
	if len(status.Staged)+len(status.Unstaged)+len(status.Untracked)+len(status.Conflicts) != 0 {
		t.Fatalf("short lines produced entries: %+v", status)
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("main\n  feature/x  \n\nbugfix/y\n")
	want := []string{"main", "feature/x", "bugfix/y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitLines = %v, want %v", got, want)
	}
	if splitLines("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
