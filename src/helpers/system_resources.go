package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

const fallbackMemoryLimitMB = 512

// RecommendedMemoryLimit returns the heap budget for a long acquisition
// session: 75% of total RAM, at least 512MB when the machine has it.
// ok is false when total memory could not be read and the fallback is used.
func RecommendedMemoryLimit() (limitMB int, ok bool) {
	totalMB := totalSystemMemoryMB("/proc/meminfo")
	if totalMB == 0 {
		return fallbackMemoryLimitMB, false
	}

	limit := int(float64(totalMB) * 0.75)
	if limit < fallbackMemoryLimitMB {
		if totalMB < fallbackMemoryLimitMB {
			return totalMB, true
		}
		return fallbackMemoryLimitMB, true
	}
	return limit, true
}

// -----------------------------------------------------------------------------

// totalSystemMemoryMB reads MemTotal from a meminfo file. 0 means unknown,
// which is always the case off Linux.
func totalSystemMemoryMB(meminfo string) int {
	file, err := os.Open(meminfo)
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.Atoi(fields[1])
			if err != nil {
				return 0
			}
			return kb / 1024
		}
	}
	return 0
}
