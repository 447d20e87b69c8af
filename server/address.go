package server

import (
	"fmt"
	"regexp"
	"strings"
)

const LocalPartRegex = `^(?i)[a-z0-9._-]+$`
const DomainNameRegex = `^(?i)(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`

var (
	localPartRe = regexp.MustCompile(LocalPartRegex)
	domainRe    = regexp.MustCompile(DomainNameRegex)
)

// Address is a parsed, case-normalized localpart@domain pair.
type Address struct {
	fullAddress string
	localPart   string
	domain      string
}

// NewAddress parses and normalizes a mail address. The local part is
// restricted to the same character set as usernames, so every local
// address maps onto a possible account name.
func NewAddress(address string) (Address, error) {
	input := strings.ToLower(strings.TrimSpace(address))

	if input == "" {
		return Address{}, fmt.Errorf("address is empty")
	}
	if strings.ContainsAny(input, " \t\n\r") {
		return Address{}, fmt.Errorf("address contains whitespace: '%s'", input)
	}

	at := strings.LastIndex(input, "@")
	if at <= 0 || at == len(input)-1 {
		return Address{}, fmt.Errorf("address must be of the form localpart@domain: '%s'", input)
	}

	localPart := input[:at]
	domain := input[at+1:]

	if !localPartRe.MatchString(localPart) {
		return Address{}, fmt.Errorf("invalid local part: '%s'", localPart)
	}
	if !domainRe.MatchString(domain) {
		return Address{}, fmt.Errorf("invalid domain: '%s'", domain)
	}

	return Address{
		fullAddress: localPart + "@" + domain,
		localPart:   localPart,
		domain:      domain,
	}, nil
}

func (a Address) FullAddress() string {
	return a.fullAddress
}

func (a Address) LocalPart() string {
	return a.localPart
}

func (a Address) Domain() string {
	return a.domain
}
