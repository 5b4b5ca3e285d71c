package config

import "github.com/achilleasa/hessian2/config/flag"

// BoolFlag creates a bool flag bound to the global store. See flag.NewBool.
func BoolFlag(cfgPath string) *flag.BoolFlag {
	return flag.NewBool(&Store, cfgPath)
}

// Float32Flag creates a float32 flag bound to the global store. See flag.NewFloat32.
func Float32Flag(cfgPath string) *flag.Float32Flag {
	return flag.NewFloat32(&Store, cfgPath)
}

// Float64Flag creates a float64 flag bound to the global store. See flag.NewFloat64.
func Float64Flag(cfgPath string) *flag.Float64Flag {
	return flag.NewFloat64(&Store, cfgPath)
}

// Uint32Flag creates a uint32 flag bound to the global store. See flag.NewUint32.
func Uint32Flag(cfgPath string) *flag.Uint32Flag {
	return flag.NewUint32(&Store, cfgPath)
}

// Uint64Flag creates a uint64 flag bound to the global store. See flag.NewUint64.
func Uint64Flag(cfgPath string) *flag.Uint64Flag {
	return flag.NewUint64(&Store, cfgPath)
}

// Int32Flag creates a int32 flag bound to the global store. See flag.NewInt32.
func Int32Flag(cfgPath string) *flag.Int32Flag {
	return flag.NewInt32(&Store, cfgPath)
}

// Int64Flag creates a int64 flag bound to the global store. See flag.NewInt64.
func Int64Flag(cfgPath string) *flag.Int64Flag {
	return flag.NewInt64(&Store, cfgPath)
}

// StringFlag creates a string flag bound to the global store. See flag.NewString.
func StringFlag(cfgPath string) *flag.StringFlag {
	return flag.NewString(&Store, cfgPath)
}

// DurationFlag creates a duration flag bound to the global store. See flag.NewDuration.
func DurationFlag(cfgPath string) *flag.DurationFlag {
	return flag.NewDuration(&Store, cfgPath)
}

// MapFlag creates a map flag bound to the global store. See flag.NewMap.
func MapFlag(cfgPath string) *flag.MapFlag {
	return flag.NewMap(&Store, cfgPath)
}
