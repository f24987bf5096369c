// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"strings"

	"github.com/ergochat/confusables"
	"golang.org/x/text/secure/precis"
	"golang.org/x/text/unicode/norm"
)

const (
	// the only supported casemapping, advertised as CASEMAPPING
	casemappingName = "precis"

	// at most this many PRECIS passes before giving up
	maxFoldingPasses = 4

	// space separates parameters, comma separates list entries,
	// and * and ? are mask wildcards
	channelForbidden = " ,*?"
	// on top of the channel ones: . (server names), ! and @ (address
	// separators) and : (trailing parameter)
	nickForbidden = channelForbidden + ".!@:"
	// channel and membership prefixes, plus -, can't start a nick
	nickForbiddenFirst = "#~&@%+-"
)

// foldStable applies the profile until the result stops changing. A single
// PRECIS pass is not idempotent.
func foldStable(profile *precis.Profile, str string) (string, error) {
	for i := 0; i < maxFoldingPasses; i++ {
		folded, err := profile.CompareKey(str)
		if err != nil {
			return "", err
		}
		if folded == str {
			return folded, nil
		}
		str = folded
	}
	return "", errCouldNotStabilize
}

// Casefold folds str with the PRECIS username profile and checks nothing
// else.
func Casefold(str string) (string, error) {
	return foldStable(precis.UsernameCaseMapped, str)
}

// CasefoldChannel returns the registry key of a channel name. The leading
// run of #'s is kept as is and the rest is casefolded.
func CasefoldChannel(name string) (string, error) {
	if name == "" {
		return "", errStringIsEmpty
	}
	prefix := name[:len(name)-len(strings.TrimLeft(name, "#"))]
	switch {
	case prefix == "":
		return "", errInvalidCharacter
	case prefix == name:
		return name, nil
	}

	folded, err := Casefold(name[len(prefix):])
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(folded, channelForbidden) {
		return "", errInvalidCharacter
	}
	return prefix + folded, nil
}

// CasefoldName returns the lookup key of a nickname.
func CasefoldName(name string) (string, error) {
	folded, err := Casefold(name)
	switch {
	case err != nil:
		return "", err
	case folded == "":
		return "", errStringIsEmpty
	case strings.ContainsAny(folded, nickForbidden),
		strings.IndexByte(nickForbiddenFirst, folded[0]) != -1:
		return "", errInvalidCharacter
	}
	return folded, nil
}

// isBoring reports whether name is plain enough ASCII to skip the
// confusables table, which would otherwise merge names like #m and #rn.
func isBoring(name string) bool {
	for i := 0; i < len(name); i++ {
		switch chr := name[i]; {
		case 'a' <= chr && chr <= 'z', 'A' <= chr && chr <= 'Z', '0' <= chr && chr <= '9':
		case strings.IndexByte("#$%^&(){}[]<>=", chr) != -1:
		default:
			return false
		}
	}
	return true
}

// the bidi rule is left out: skeletons can mix scripts
var skeletonProfile = precis.NewIdentifier(precis.FoldWidth, precis.LowerCase(), precis.Norm(norm.NFC))

// Skeleton maps a channel name to a key shared by names that render alike,
// such as "#abc" with a Cyrillic a. The skeleton is computed before
// folding, so it must be derived from the name as the client sent it and
// not from its casefolded form.
func Skeleton(name string) (string, error) {
	if !isBoring(name) {
		name = confusables.Skeleton(name)
	}
	return foldStable(skeletonProfile, name)
}
