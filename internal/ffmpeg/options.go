package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType represents a strongly typed FFmpeg option
type OptionType string

// FFmpeg option constants
const (
	OptionThreadQueue1024 OptionType = "thread_queue_1024"
	OptionThreadQueue4096 OptionType = "thread_queue_4096"
	OptionGeneratePTS     OptionType = "genpts"
	OptionLowLatency      OptionType = "low_latency"
	OptionZeroLatency     OptionType = "zerolatency"
	OptionFlushPackets    OptionType = "flush_packets"
)

// OptionCategory represents option categories
type OptionCategory string

const (
	CategoryInput       OptionCategory = "Input"
	CategoryPerformance OptionCategory = "Performance"
	CategoryOutput      OptionCategory = "Output"
)

// ExclusiveGroup represents a group of mutually exclusive options
type ExclusiveGroup string

const (
	GroupThreadQueue ExclusiveGroup = "thread_queue"
)

// Option represents available FFmpeg feature flags with metadata
type Option struct {
	Key            OptionType      `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       OptionCategory  `json:"category"`
	AppDefault     bool            `json:"app_default"`
	ExclusiveGroup *ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType    `json:"conflicts_with,omitempty"`
}

func group(g ExclusiveGroup) *ExclusiveGroup { return &g }

// AllOptions contains all available FFmpeg feature flags
var AllOptions = []Option{
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Queue up to 1024 raw frames between stdin and the encoder",
		Category:       CategoryInput,
		AppDefault:     true,
		ExclusiveGroup: group(GroupThreadQueue),
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Queue up to 4096 raw frames (slow encoders at high resolution)",
		Category:       CategoryInput,
		ExclusiveGroup: group(GroupThreadQueue),
	},
	{
		Key:         OptionGeneratePTS,
		Name:        "Generate PTS",
		Description: "Generate presentation timestamps from the input frame rate",
		Category:    CategoryInput,
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Disable encoder frame reordering and delay",
		Category:    CategoryPerformance,
	},
	{
		Key:         OptionZeroLatency,
		Name:        "Zero Latency Tune",
		Description: "Use -tune zerolatency on software encoders",
		Category:    CategoryPerformance,
	},
	{
		Key:         OptionFlushPackets,
		Name:        "Flush Packets",
		Description: "Write each packet to stdout as soon as it is muxed",
		Category:    CategoryOutput,
		AppDefault:  true,
	},
}

// GetOptionByKey returns an option by its key
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// ParseOptions converts option keys to OptionTypes, rejecting unknown keys.
func ParseOptions(keys []string) ([]OptionType, error) {
	options := make([]OptionType, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if GetOptionByKey(OptionType(key)) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", key)
		}
		options = append(options, OptionType(key))
	}
	return options, nil
}

// ValidateOptions checks for conflicts and exclusive group violations
func ValidateOptions(selectedOptions []OptionType) error {
	exclusiveGroups := make(map[ExclusiveGroup][]string)
	selectedSet := make(map[OptionType]bool)

	for _, optionKey := range selectedOptions {
		option := GetOptionByKey(optionKey)
		if option == nil {
			return fmt.Errorf("unknown ffmpeg option %q", optionKey)
		}
		selectedSet[optionKey] = true
		if option.ExclusiveGroup != nil {
			exclusiveGroups[*option.ExclusiveGroup] = append(exclusiveGroups[*option.ExclusiveGroup], option.Name)
		}
	}

	for g, names := range exclusiveGroups {
		if len(names) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", g, strings.Join(names, ", "))
		}
	}

	for _, optionKey := range selectedOptions {
		option := GetOptionByKey(optionKey)
		for _, conflictOpt := range option.ConflictsWith {
			if selectedSet[conflictOpt] {
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, GetOptionByKey(conflictOpt).Name)
			}
		}
	}

	return nil
}

// GetDefaultOptions returns the options that are enabled by default in the application
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// inputOptionArgs returns the arguments placed before -i.
func inputOptionArgs(options []OptionType) []string {
	var args []string
	for _, option := range options {
		switch option {
		case OptionThreadQueue1024:
			args = append(args, "-thread_queue_size", "1024")
		case OptionThreadQueue4096:
			args = append(args, "-thread_queue_size", "4096")
		case OptionGeneratePTS:
			args = append(args, "-fflags", "+genpts")
		}
	}
	return args
}

// outputOptionArgs returns the arguments placed after the encoder settings.
func outputOptionArgs(options []OptionType, encoder string) []string {
	var args []string
	for _, option := range options {
		switch option {
		case OptionLowLatency:
			args = append(args, "-flags", "+low_delay")
		case OptionZeroLatency:
			if !isHardwareEncoder(encoder) {
				args = append(args, "-tune", "zerolatency")
			}
		case OptionFlushPackets:
			args = append(args, "-flush_packets", "1")
		}
	}
	return args
}
