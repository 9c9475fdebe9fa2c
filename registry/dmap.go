package registry

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/chimeradev/regaccess/deverr"
)

// FromDMapFile reads and parses a DMap file from disk.
func FromDMapFile(path string) ([]DeviceInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, deverr.WrapRuntime("dmap file "+path+": read", err)
	}
	return ParseDMap(string(raw), path, filepath.Dir(path))
}

// ParseDMap parses DMap file content already read into memory. baseDir is
// used to resolve each entry's map-file field relative to the DMap file's
// own directory, matching the original DMapFileParser's convention. Line
// syntax: "<alias> <uri> <map_file>" — whitespace-separated, `#` starts a
// comment (to end of line), blank lines are ignored.
func ParseDMap(content, sourceFile, baseDir string) ([]DeviceInfo, error) {
	var infos []DeviceInfo
	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if commentPos := strings.Index(line, "#"); commentPos != -1 {
			line = line[:commentPos]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, deverr.NewLogic("dmap file %q line %d: expected 3 fields (alias uri map_file), got %d: %q",
				sourceFile, lineNum, len(fields), line)
		}

		mapFile := fields[2]
		if !filepath.IsAbs(mapFile) {
			mapFile = filepath.Join(baseDir, mapFile)
		}

		infos = append(infos, DeviceInfo{
			Alias:      fields[0],
			URI:        fields[1],
			MapFile:    mapFile,
			SourceFile: sourceFile,
			SourceLine: lineNum,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, deverr.WrapRuntime("dmap file "+sourceFile+": scan", err)
	}
	return infos, nil
}
