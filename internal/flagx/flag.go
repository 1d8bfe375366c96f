// Package flagx lets several config layers each parse only the command-line
// flags they own, so one layer's flag set never rejects another layer's flags.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs returns the subset of args made of allowedFlags and their values.
//
// Both "-c conf.json" and "-c=conf.json" forms are recognised. A token that
// starts with "-" is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// StringFlag extracts a single string flag known under a short and a long
// name from args. The last occurrence wins; "" is returned when absent.
func StringFlag(args []string, short, long, usage string) string {
	var value string

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&value, long, "", usage)
	fs.StringVar(&value, short, "", usage+" (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-" + short, "-" + long}))

	return value
}

// JsonConfigFlags returns the path given with -c or -config, if any.
func JsonConfigFlags() string {
	return StringFlag(os.Args[1:], "c", "config", "path to JSON config file")
}

// EnvFileFlags returns the path given with -envfile, if any. The dotenv file
// is optional; an empty result means only the process environment is used.
func EnvFileFlags() string {
	return StringFlag(os.Args[1:], "envfile", "env-file", "path to .env file")
}
