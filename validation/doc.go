// Package validation validates configuration structs with struct tags.
//
// Field names in error messages follow the mapstructure tags, so a failure
// reads like the config key that caused it:
//
//	type Config struct {
//	    BufferSize string `mapstructure:"buffer_size" validate:"required,size"`
//	}
//	err := validation.Validate(cfg) // "buffer_size: must be a size such as 64KB"
//
// The custom "size" tag accepts human-readable sizes understood by util.ParseSize.
package validation
