package plan

import (
	"fmt"
	"sort"
	"time"
)

// ErrUnknownPreset is wrapped by Preset for unrecognized names.
var ErrUnknownPreset = fmt.Errorf("unknown preset")

const (
	defaultInterval  = 100 * time.Millisecond
	defaultMaxEvents = 10
)

// presets are the named scenario shapes used to parameterize repeated
// test runs. Sizes mirror the media mixes the real backend sees.
var presets = map[string]func() Plan{
	"smoke": func() Plan {
		return uniform("clip", ".mov", 3, 1<<20)
	},
	"10x100mb": func() Plan {
		return uniform("clip", ".mov", 10, 100<<20)
	},
	"1x2gb": func() Plan {
		return uniform("clip", ".mov", 1, 2<<30)
	},
	"1000x4k": func() Plan {
		return uniform("sidecar", ".xml", 1000, 4<<10)
	},
	"camera-card": cameraCard,
}

// Preset returns a fresh copy of the named scenario plan.
func Preset(name string) (Plan, error) {
	mk, ok := presets[name]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return mk(), nil
}

// PresetNames returns all preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func uniform(stem, ext string, count int, size int64) Plan {
	files := make([]File, count)
	for i := range files {
		name := fmt.Sprintf("%s_%04d%s", stem, i+1, ext)
		files[i] = File{
			Name: name,
			Path: "DCIM/100MEDIA/" + name,
			Size: size,
		}
	}
	return Plan{
		Files:            files,
		ProgressInterval: defaultInterval,
		SpeedMultiplier:  1,
		MaxEventsPerFile: defaultMaxEvents,
	}
}

// cameraCard approximates a half-full camera card: large video clips
// with small sidecar metadata interleaved.
func cameraCard() Plan {
	var files []File
	for i := range 8 {
		clip := fmt.Sprintf("IMG_%04d.MP4", i+1)
		side := fmt.Sprintf("IMG_%04d.XML", i+1)
		files = append(files,
			File{Name: clip, Path: "DCIM/100MEDIA/" + clip, Size: int64(200+50*i) << 20},
			File{Name: side, Path: "DCIM/100MEDIA/" + side, Size: 6 << 10},
		)
	}
	return Plan{
		Files:            files,
		ProgressInterval: defaultInterval,
		SpeedMultiplier:  1,
		MaxEventsPerFile: defaultMaxEvents,
	}
}
