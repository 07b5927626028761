package io

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"

	"github.com/geniass/printer-status/pkg/alert"
	"github.com/geniass/printer-status/pkg/scraper"
)

const timestampLayout = "2006-01-02T15-04-05Z-0700"

// Cycle is the outcome of one poll over the fleet.
type Cycle struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Records    []scraper.Record `json:"records"`
	Alerts     []alert.Alert    `json:"alerts"`
	NewAlerts  []alert.Alert    `json:"new_alerts"`
}

type CycleWithPath struct {
	Cycle
	Path string
}

var ErrNoCycles = errors.New("no archived cycles")

// SaveCycle writes c as JSON into dir, named by its start time so a directory
// listing is chronological.
func SaveCycle(dir string, c Cycle) (string, error) {
	if err := os.MkdirAll(dir, os.ModeDir|0755); err != nil {
		return "", err
	}

	name := c.StartedAt.Format(timestampLayout) + "_" + sanitize.BaseName(c.ID) + ".json"
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode cycle %s: %w", c.ID, err)
	}
	return path, nil
}

func LoadFile(path string) (Cycle, error) {
	f, err := os.Open(path)
	if err != nil {
		return Cycle{}, err
	}
	defer f.Close()

	var c Cycle
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return Cycle{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return c, nil
}

// LoadFromDir loads every archived cycle in dir, oldest first.
func LoadFromDir(dir string) ([]CycleWithPath, error) {
	var cs []CycleWithPath
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		c, err := LoadFile(path)
		if err != nil {
			return err
		}
		cs = append(cs, CycleWithPath{Cycle: c, Path: path})
		return nil
	})

	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].StartedAt.Before(cs[j].StartedAt)
	})

	if err != nil {
		return cs, err
	}
	return cs, nil
}

func Latest(dir string) (CycleWithPath, error) {
	cs, err := LoadFromDir(dir)
	if err != nil {
		return CycleWithPath{}, err
	}
	if len(cs) == 0 {
		return CycleWithPath{}, ErrNoCycles
	}
	return cs[len(cs)-1], nil
}

// DirSource serves the newest cycle found in an archive directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Latest() (Cycle, bool) {
	c, err := Latest(s.Dir)
	if err != nil {
		return Cycle{}, false
	}
	return c.Cycle, true
}
