// Copyright 2023-2024 The Parca Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package buildinfo

import (
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Version     string
	GoVersion   string
	GoArch      string
	GoOS        string
	VcsRevision string
	VcsTime     string
	VcsModified bool
}

// Fetch returns the build info of the running binary. version is the
// release version set at link time and may be empty.
func Fetch(version string) Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: orDefault(version, "unknown")}
	}
	return fromBuildInfo(bi, version)
}

func fromBuildInfo(bi *debug.BuildInfo, version string) Info {
	info := Info{
		Version:   version,
		GoVersion: bi.GoVersion,
	}

	for _, setting := range bi.Settings {
		switch setting.Key {
		case "GOARCH":
			info.GoArch = setting.Value
		case "GOOS":
			info.GoOS = setting.Value
		case "vcs.revision":
			info.VcsRevision = setting.Value
		case "vcs.time":
			info.VcsTime = setting.Value
		case "vcs.modified":
			info.VcsModified = setting.Value == "true"
		}
	}

	if info.Version == "" {
		switch {
		case bi.Main.Version != "" && bi.Main.Version != "(devel)":
			info.Version = bi.Main.Version
		case info.VcsRevision != "":
			info.Version = shortRevision(info.VcsRevision)
			if info.VcsModified {
				info.Version += "-dirty"
			}
		default:
			info.Version = "unknown"
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
