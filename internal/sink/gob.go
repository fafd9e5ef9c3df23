package sink

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/model"
)

func init() {
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		if def.Gob.RootPath == "" {
			return nil, fmt.Errorf("gob writer requires a root_path")
		}
		return NewGobWriter(def.Gob.RootPath), nil
	})
}

// SnapshotTimeFormat names each window's directory.
const SnapshotTimeFormat = "2006-01-02_15-04-05"

// Summary holds the metadata of one window's snapshot.
type Summary struct {
	Flows        int     `json:"flows"`
	TotalPackets uint64  `json:"total_packets"`
	AttackRows   int     `json:"attack_rows"`
	MaxPktRate   float64 `json:"max_packet_rate"`
	Timestamp    string  `json:"timestamp"`
}

// GobWriter writes each window to <root>/<timestamp>/features.gob with a
// summary.json next to it.
type GobWriter struct {
	rootPath string
}

func NewGobWriter(rootPath string) *GobWriter {
	return &GobWriter{rootPath: rootPath}
}

func (w *GobWriter) Name() string {
	return "gob:" + w.rootPath
}

func (w *GobWriter) Write(batch model.FeatureBatch) error {
	// 1. Create timestamped directory
	dir := filepath.Join(w.rootPath, batch.Timestamp.Format(SnapshotTimeFormat))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// 2. Write the batch
	dataPath := filepath.Join(dir, "features.gob")
	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", dataPath, err)
	}
	defer file.Close()
	if err := gob.NewEncoder(file).Encode(batch); err != nil {
		return fmt.Errorf("failed to encode features to gob for file '%s': %w", dataPath, err)
	}

	// 3. Write summary file
	summary := Summary{Flows: len(batch.Vectors), Timestamp: batch.Timestamp.UTC().Format(time.RFC3339)}
	for _, v := range batch.Vectors {
		summary.TotalPackets += v.FwdPackets + v.BwdPackets
		if v.Label == model.LabelAttack {
			summary.AttackRows++
		}
		if v.PacketRate > summary.MaxPktRate {
			summary.MaxPktRate = v.PacketRate
		}
	}
	summaryFile, err := os.Create(filepath.Join(dir, "summary.json"))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

func (w *GobWriter) Close() error {
	return nil
}

// ReadGobSnapshot decodes a features.gob file written by GobWriter.
func ReadGobSnapshot(path string) (model.FeatureBatch, error) {
	var batch model.FeatureBatch
	file, err := os.Open(path)
	if err != nil {
		return batch, fmt.Errorf("failed to open snapshot '%s': %w", path, err)
	}
	defer file.Close()
	if err := gob.NewDecoder(file).Decode(&batch); err != nil {
		return batch, fmt.Errorf("failed to decode snapshot '%s': %w", path, err)
	}
	return batch, nil
}
