// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command keyhygiene is a line-oriented static check over the packages that
// touch private key bytes. It reports three kinds of problem:
//
//	rand   math/rand imported where keys or passphrases are handled
//	zero   a function references key material but never wipes anything
//	log    key material passed to fmt verbs or zap fields
//
// Usage: keyhygiene <repo-root>. Exit status is 1 when anything is found.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// keyDirs hold code that sees private keys, passphrases or their ciphertext.
var keyDirs = []string{
	"internal/signing",
	"internal/crypto",
	"internal/keyfile",
	"internal/security",
	"cmd/apcoldsign",
}

var (
	mathRandImport   = regexp.MustCompile(`"math/rand(/v2)?"`)
	cryptoRandImport = regexp.MustCompile(`"crypto/rand"`)
	mathRandCalls    = regexp.MustCompile(`rand\.(Seed|Intn\(|Int31|Int63|Float|Perm|Shuffle|NewSource)`)

	keyRef  = regexp.MustCompile(`(?i)privatekey|privkey|secretkey|\bseed\(\)`)
	zeroRef = regexp.MustCompile(`ZeroBytes|\.Zero\(\)|\.Destroy\(\)`)
	funcRE  = regexp.MustCompile(`^func\s+(\([^)]+\)\s+)?(\w+)`)

	// Key material reaching a formatter or a structured log field.
	leakPatterns = []*regexp.Regexp{
		regexp.MustCompile(`%[xXvs].*(?i)\b(priv(ate)?key|secretkey|seed|passphrase|pass)\b\s*[,)]`),
		regexp.MustCompile(`zap\.(Binary|ByteString|String|Any|Stringer)\("[^"]*",\s*(?i)(priv(ate)?key|key|seed|pass(phrase)?)\b`),
		regexp.MustCompile(`fmt\.(Print|Println)\((?i)(priv(ate)?key|key|seed|pass(phrase)?)\)`),
	}
)

// ownershipExempt lists functions that hand key bytes to or from their caller,
// who is then responsible for wiping them.
var ownershipExempt = map[string]string{
	"Sign":         "key is a parameter; the caller owns it",
	"NewKeySigner": "copies the key; KeySigner.Zero wipes the copy",
	"Generate":     "returns a new key to the caller",
	"Marshal":      "returns the encoded key to the caller",
	"Verify":       "public key only",
}

type finding struct {
	file   string
	line   int
	kind   string
	text   string
	reason string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: keyhygiene <repo-root>")
		os.Exit(2)
	}
	findings, checked, err := scan(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyhygiene: %v\n", err)
		os.Exit(2)
	}
	report(os.Stdout, findings, checked)
	if len(findings) > 0 {
		os.Exit(1)
	}
}

func scan(root string) ([]finding, int, error) {
	var findings []finding
	checked := 0
	for _, dir := range keyDirs {
		dirPath := filepath.Join(root, dir)
		if _, err := os.Stat(dirPath); os.IsNotExist(err) {
			continue
		}
		err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			lines, err := readLines(path)
			if err != nil {
				return err
			}
			checked++
			findings = append(findings, checkRand(path, lines)...)
			findings = append(findings, checkZero(path, lines)...)
			findings = append(findings, checkLeaks(path, lines)...)
			return nil
		})
		if err != nil {
			return nil, checked, fmt.Errorf("walk %s: %w", dir, err)
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].file != findings[j].file {
			return findings[i].file < findings[j].file
		}
		return findings[i].line < findings[j].line
	})
	return findings, checked, nil
}

func report(w io.Writer, findings []finding, checked int) {
	_, _ = fmt.Fprintf(w, "Key Hygiene Analysis\n====================\nFiles checked: %d\n\n", checked)
	if len(findings) == 0 {
		_, _ = fmt.Fprintln(w, "No issues found.")
		return
	}
	_, _ = fmt.Fprintf(w, "Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		_, _ = fmt.Fprintf(w, "%s:%d [%s]\n  Line: %s\n  Issue: %s\n\n", f.file, f.line, f.kind, strings.TrimSpace(f.text), f.reason)
	}
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "//")
}

func checkRand(path string, lines []string) []finding {
	var out []finding
	hasCrypto := false
	for i, line := range lines {
		if cryptoRandImport.MatchString(line) {
			hasCrypto = true
		}
		if mathRandImport.MatchString(line) {
			out = append(out, finding{path, i + 1, "rand", line, "math/rand in key-handling code; use crypto/rand"})
		}
	}
	if hasCrypto {
		return out
	}
	for i, line := range lines {
		if !isComment(line) && mathRandCalls.MatchString(line) {
			out = append(out, finding{path, i + 1, "rand", line, "math/rand function without a crypto/rand import"})
		}
	}
	return out
}

// checkZero tracks top-level function bodies by brace depth. A body that
// mentions key material without any wipe call is reported once, at its
// last key reference.
func checkZero(path string, lines []string) []finding {
	var out []finding
	var (
		name    string
		depth   int
		keyLine int
		keyText string
		wiped   bool
		inFunc  bool
	)
	flush := func() {
		if inFunc && keyLine > 0 && !wiped {
			if _, ok := ownershipExempt[name]; !ok {
				out = append(out, finding{path, keyLine, "zero", keyText, "function " + name + " references key material but never wipes it"})
			}
		}
		inFunc = false
	}

	for i, line := range lines {
		if m := funcRE.FindStringSubmatch(line); m != nil {
			flush()
			name, depth, keyLine, keyText, wiped, inFunc = m[2], 0, 0, "", false, true
		}
		if !inFunc {
			continue
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if !isComment(line) && keyRef.MatchString(line) {
			keyLine, keyText = i+1, line
		}
		if zeroRef.MatchString(line) {
			wiped = true
		}
		if depth == 0 && strings.Contains(line, "}") {
			flush()
		}
	}
	flush()
	return out
}

func checkLeaks(path string, lines []string) []finding {
	var out []finding
	for i, line := range lines {
		if isComment(line) {
			continue
		}
		for _, pat := range leakPatterns {
			if pat.MatchString(line) {
				out = append(out, finding{path, i + 1, "log", line, "possible key material in formatted or logged output"})
				break
			}
		}
	}
	return out
}
