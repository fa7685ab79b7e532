package domain

import "regexp"

// SupportedAlgorithms maps the algorithm names accepted at the boundary to
// the hashcat mode ids the coordinator schedules with.
var SupportedAlgorithms = map[string]int{
	"md5":       0,
	"sha1":      100,
	"sha224":    1400,
	"sha256":    1400,
	"sha384":    10800,
	"sha512":    1700,
	"sha3-256":  17400,
	"sha3-512":  17410,
	"ripemd160": 6100,
	"whirlpool": 6100,
	"ntlm":      1000,
	"netntlmv2": 5600,
	"mssql2000": 131,
	"mssql2005": 132,
	"mysql323":  200,
	"mysql41":   300,
	"bcrypt":    3200,
	"asrep23":   18200,
	"asrep18":   19700,
}

// HashPatterns holds the per-algorithm format check applied before a hash is
// admitted to the pipeline.
var HashPatterns = map[string]*regexp.Regexp{
	"md5":       regexp.MustCompile(`^[a-fA-F0-9]{32}$`),
	"sha1":      regexp.MustCompile(`^[a-fA-F0-9]{40}$`),
	"sha224":    regexp.MustCompile(`^[a-fA-F0-9]{56}$`),
	"sha256":    regexp.MustCompile(`^[a-fA-F0-9]{64}$`),
	"sha384":    regexp.MustCompile(`^[a-fA-F0-9]{96}$`),
	"sha512":    regexp.MustCompile(`^[a-fA-F0-9]{128}$`),
	"sha3-256":  regexp.MustCompile(`^[a-fA-F0-9]{64}$`),
	"sha3-512":  regexp.MustCompile(`^[a-fA-F0-9]{128}$`),
	"ripemd160": regexp.MustCompile(`^[a-fA-F0-9]{40}$`),
	"whirlpool": regexp.MustCompile(`^[a-fA-F0-9]{128}$`),
	"ntlm":      regexp.MustCompile(`^[a-fA-F0-9]{32}$`),
	"netntlmv2": regexp.MustCompile(`^[a-zA-Z0-9\-_$]+::[a-zA-Z0-9\-_$]*:[a-fA-F0-9]{16}:[a-fA-F0-9]+:[a-fA-F0-9]+$`),
	"mssql2000": regexp.MustCompile(`^[a-fA-F0-9]{54}$`),
	"mssql2005": regexp.MustCompile(`^[a-fA-F0-9]{40}$`),
	"mysql323":  regexp.MustCompile(`^[a-fA-F0-9]{16}$`),
	"mysql41":   regexp.MustCompile(`^[a-fA-F0-9]{40}$`),
	"bcrypt":    regexp.MustCompile(`^\$2[ayb]\$[0-9]{2}\$[a-zA-Z0-9./]{53}$`),
	"asrep23":   regexp.MustCompile(`^\$krb5asrep\$[0-9]+\$[a-zA-Z0-9\-_.]+@[a-zA-Z0-9\-_.]+:.*\$[a-fA-F0-9]+$`),
	"asrep18":   regexp.MustCompile(`^\$krb5tgs\$18\$[a-zA-Z0-9\-./]+\$[A-Z]+\$\*[a-zA-Z0-9\-./]+\*\$[a-fA-F0-9]+\$[a-fA-F0-9]+$`),
}

// DefaultWordlist is assigned to tasks when the caller does not name one.
const DefaultWordlist = "rockyou.txt"
