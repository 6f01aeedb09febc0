package keyValStore

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// ensureFreeSpace creates the data directory if needed and verifies the
// volume holding it has at least minimumGB of free space.
func ensureFreeSpace(path string, minimumGB int, log *logrus.Logger) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", path, err)
	}

	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("disk usage for %s: %w", path, err)
	}

	totalGB := float64(usage.Total) / 1e9
	freeGB := float64(usage.Free) / 1e9

	log.WithFields(logrus.Fields{
		"path":       path,
		"total (GB)": fmt.Sprintf("%.2f", totalGB),
		"free (GB)":  fmt.Sprintf("%.2f", freeGB),
	}).Info("data directory disk usage")

	if minimumGB > 0 && freeGB < float64(minimumGB) {
		return fmt.Errorf("not enough free space on %s: %.2f GB free, %d GB required", path, freeGB, minimumGB)
	}
	return nil
}
