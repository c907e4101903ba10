package address

import (
	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/rfc5322/literal"
)

const (
	cr   = '\r'
	lf   = '\n'
	sp   = ' '
	htab = '\t'

	maxLocalPartLen = 64
	maxDomainLen    = 255
	maxAddressLen   = 254
	maxLabelLen     = 63
)

// characters that are visible US-ASCII but not atext
const specials = `()<>[]:;@\,."`

func isSpecial(c byte) bool {
	for i := 0; i < len(specials); i++ {
		if specials[i] == c {
			return true
		}
	}
	return false
}

func isLetDig(c byte) bool {
	return ('0' <= c && c <= '9') || ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z')
}

type addrParser struct {
	s       []byte
	i       int
	r       *Result
	observe func(int, Context, diagnosis.Diagnosis)

	context Context
	stack   []Context
	prior   Context

	token      byte
	tokenPrior byte
	// number of CRLFs in the current run of FWS; 0 when not in one
	crlfCount int

	elementCount int
	elementLen   int
	hyphen       bool
	endOrDie     bool

	local, domain, lit []byte
	localAtoms         [][]byte
	domainAtoms        [][]byte
}

func newAddrParser(s []byte, observe func(int, Context, diagnosis.Diagnosis)) *addrParser {
	return &addrParser{
		s:           s,
		r:           newResult(),
		observe:     observe,
		context:     LocalPart,
		stack:       []Context{LocalPart},
		prior:       LocalPart,
		localAtoms:  [][]byte{nil},
		domainAtoms: [][]byte{nil},
	}
}

func (p *addrParser) add(d diagnosis.Diagnosis) {
	p.r.Add(d)
	if p.observe != nil {
		p.observe(p.i, p.context, d)
	}
}

func (p *addrParser) fail(msg string) {
	panic(&InvariantError{Pos: p.i, Context: p.context, Prior: p.prior, Msg: msg})
}

func (p *addrParser) push(c Context) {
	p.stack = append(p.stack, p.context)
	p.context = c
}

func (p *addrParser) pop() {
	if len(p.stack) == 0 {
		p.fail("context stack underflow")
	}
	p.prior = p.context
	p.context = p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
}

// consumeLF steps over the LF that must follow a CR.
func (p *addrParser) consumeLF() bool {
	p.i++
	if p.i >= len(p.s) || p.s[p.i] != lf {
		p.add(diagnosis.ErrCRNoLF)
		return false
	}
	return true
}

func (p *addrParser) appendLocal(b ...byte) {
	p.local = append(p.local, b...)
	p.localAtoms[p.elementCount] = append(p.localAtoms[p.elementCount], b...)
}

func (p *addrParser) appendDomain(b ...byte) {
	p.domain = append(p.domain, b...)
	p.domainAtoms[p.elementCount] = append(p.domainAtoms[p.elementCount], b...)
}

func (p *addrParser) parse() *Result {
	for p.i = 0; p.i < len(p.s); p.i++ {
		p.token = p.s[p.i]
		switch p.context {
		case LocalPart:
			p.parseLocalPart()
		case Domain:
			p.parseDomain()
		case Literal:
			p.parseLiteral()
		case QuotedString:
			p.parseQuotedString()
		case QuotedPair:
			p.parseQuotedPair()
		case Comment:
			p.parseComment()
		case FWS:
			p.parseFWS()
		default:
			p.fail("unknown context")
		}
		if p.r.Max() > diagnosis.Diagnosis(diagnosis.CategoryRFC5322) {
			break
		}
	}

	if p.r.Max() < diagnosis.Diagnosis(diagnosis.CategoryRFC5322) {
		p.finalChecks()
	}

	r := p.r
	r.LocalPart = string(p.local)
	r.Domain = string(p.domain)
	r.Literal = string(p.lit)
	r.LocalAtoms = stringify(p.localAtoms)
	r.DomainAtoms = stringify(p.domainAtoms)
	r.End = p.context
	return r
}

func stringify(bs [][]byte) []string {
	retval := make([]string, len(bs))
	for i, b := range bs {
		retval[i] = string(b)
	}
	return retval
}

// finalChecks runs once the input is exhausted. Only the first matching
// condition is reported.
func (p *addrParser) finalChecks() {
	switch {
	case p.context == QuotedString:
		p.add(diagnosis.ErrUnclosedQuotedStr)
	case p.context == QuotedPair:
		p.add(diagnosis.ErrBackslashEnd)
	case p.context == Comment:
		p.add(diagnosis.ErrUnclosedComment)
	case p.context == Literal:
		p.add(diagnosis.ErrUnclosedDomLit)
	case p.token == cr:
		p.add(diagnosis.ErrFWSCRLFEnd)
	case len(p.s) == 0:
		p.add(diagnosis.ErrNoLocalPart)
	case len(p.domain) == 0:
		p.add(diagnosis.ErrNoDomain)
	case p.elementLen == 0:
		p.add(diagnosis.ErrDotEnd)
	case p.hyphen:
		p.add(diagnosis.ErrDomainHyphenEnd)
	case len(p.domain) > maxDomainLen:
		p.add(diagnosis.RFC5322DomainTooLong)
	case len(p.local)+1+len(p.domain) > maxAddressLen:
		p.add(diagnosis.RFC5322TooLong)
	case p.elementLen > maxLabelLen:
		p.add(diagnosis.RFC5322LabelTooLong)
	}
}

// startFWS enters folding white space on SP, HTAB or CRLF. It reports false
// if the token was a CR without a following LF.
func (p *addrParser) startFWS() bool {
	if p.token == cr && !p.consumeLF() {
		return false
	}
	return true
}

func (p *addrParser) enterFWS() {
	p.push(FWS)
	p.tokenPrior = p.token
}

// local-part = dot-atom / quoted-string / obs-local-part
func (p *addrParser) parseLocalPart() {
	switch p.token {
	case '(':
		if p.elementLen == 0 {
			if p.elementCount == 0 {
				p.add(diagnosis.CFWSComment)
			} else {
				p.add(diagnosis.DeprecComment)
			}
		} else {
			p.add(diagnosis.CFWSComment)
			// nothing but more CFWS may follow in this element
			p.endOrDie = true
		}
		p.push(Comment)

	case '.':
		if p.elementLen == 0 {
			if p.elementCount == 0 {
				p.add(diagnosis.ErrDotStart)
			} else {
				p.add(diagnosis.ErrConsecutiveDots)
			}
		} else if p.endOrDie {
			// CFWS between the element and the dot is obs-local-part
			p.add(diagnosis.DeprecLocalPart)
		}
		p.endOrDie = false
		p.elementLen = 0
		p.elementCount++
		p.local = append(p.local, p.token)
		p.localAtoms = append(p.localAtoms, nil)

	case '"':
		if p.elementLen != 0 {
			p.add(diagnosis.ErrExpectingAtext)
			return
		}
		if p.elementCount == 0 {
			p.add(diagnosis.RFC5321QuotedString)
		} else {
			p.add(diagnosis.DeprecLocalPart)
		}
		p.appendLocal(p.token)
		p.elementLen++
		p.endOrDie = true
		p.push(QuotedString)

	case cr, sp, htab:
		if !p.startFWS() {
			return
		}
		if p.elementLen == 0 {
			if p.elementCount == 0 {
				p.add(diagnosis.CFWSFWS)
			} else {
				p.add(diagnosis.DeprecFWS)
			}
		} else {
			p.endOrDie = true
		}
		p.enterFWS()

	case '@':
		if len(p.stack) != 1 {
			p.fail("unexpected item on context stack")
		}
		switch {
		case len(p.local) == 0:
			p.add(diagnosis.ErrNoLocalPart)
		case p.elementLen == 0:
			p.add(diagnosis.ErrDotEnd)
		case len(p.local) > maxLocalPartLen:
			p.add(diagnosis.RFC5322LocalTooLong)
		case p.prior == Comment || p.prior == FWS:
			p.add(diagnosis.DeprecCFWSNearAt)
		}
		p.context = Domain
		p.stack = []Context{Domain}
		p.elementCount = 0
		p.elementLen = 0
		p.endOrDie = false

	default:
		if p.endOrDie {
			switch p.prior {
			case Comment, FWS:
				p.add(diagnosis.ErrAtextAfterCFWS)
			case QuotedString:
				p.add(diagnosis.ErrAtextAfterQS)
			default:
				p.fail("atext found after the end of an element")
			}
			return
		}
		p.prior = p.context
		if p.token < 33 || p.token > 126 || isSpecial(p.token) {
			p.add(diagnosis.ErrExpectingAtext)
		}
		p.appendLocal(p.token)
		p.elementLen++
	}
}

// domain = dot-atom / domain-literal / obs-domain
func (p *addrParser) parseDomain() {
	switch p.token {
	case '(':
		if p.elementLen == 0 {
			if p.elementCount == 0 {
				p.add(diagnosis.DeprecCFWSNearAt)
			} else {
				p.add(diagnosis.DeprecComment)
			}
		} else {
			p.add(diagnosis.CFWSComment)
			p.endOrDie = true
		}
		p.push(Comment)

	case '.':
		switch {
		case p.elementLen == 0:
			if p.elementCount == 0 {
				p.add(diagnosis.ErrDotStart)
			} else {
				p.add(diagnosis.ErrConsecutiveDots)
			}
		case p.hyphen:
			p.add(diagnosis.ErrDomainHyphenEnd)
		case p.elementLen > maxLabelLen:
			p.add(diagnosis.RFC5322LabelTooLong)
		}
		p.endOrDie = false
		p.elementLen = 0
		p.elementCount++
		p.domainAtoms = append(p.domainAtoms, nil)
		p.domain = append(p.domain, p.token)

	case '[':
		if len(p.domain) != 0 {
			p.add(diagnosis.ErrExpectingAtext)
			return
		}
		p.endOrDie = true
		p.elementLen++
		p.push(Literal)
		p.appendDomain(p.token)
		p.lit = p.lit[:0]

	case cr, sp, htab:
		if !p.startFWS() {
			return
		}
		if p.elementLen == 0 {
			if p.elementCount == 0 {
				p.add(diagnosis.DeprecCFWSNearAt)
			} else {
				p.add(diagnosis.DeprecFWS)
			}
		} else {
			p.add(diagnosis.CFWSFWS)
			p.endOrDie = true
		}
		p.enterFWS()

	default:
		if p.endOrDie {
			switch p.prior {
			case Comment, FWS:
				p.add(diagnosis.ErrAtextAfterCFWS)
			case Literal:
				p.add(diagnosis.ErrAtextAfterDomLit)
			default:
				p.fail("atext found after the end of an element")
			}
		}
		p.hyphen = false
		switch {
		case p.token < 33 || p.token > 126 || isSpecial(p.token):
			p.add(diagnosis.ErrExpectingAtext)
		case p.token == '-':
			if p.elementLen == 0 {
				p.add(diagnosis.ErrDomainHyphenStart)
			}
			p.hyphen = true
		case !isLetDig(p.token):
			// atext, but not a letter, digit or hyphen
			p.add(diagnosis.RFC5322Domain)
		}
		p.appendDomain(p.token)
		p.elementLen++
	}
}

// domain-literal = [CFWS] "[" *([FWS] dtext) [FWS] "]" [CFWS]
func (p *addrParser) parseLiteral() {
	switch p.token {
	case ']':
		if p.r.Max() < diagnosis.Diagnosis(diagnosis.CategoryDeprec) {
			for _, d := range literal.Classify(string(p.lit)) {
				p.add(d)
			}
		} else {
			p.add(diagnosis.RFC5322DomainLiteral)
		}
		p.appendDomain(p.token)
		p.elementLen++
		p.pop()

	case '\\':
		p.add(diagnosis.RFC5322DomLitObsDtext)
		p.push(QuotedPair)

	case cr, sp, htab:
		if !p.startFWS() {
			return
		}
		p.add(diagnosis.CFWSFWS)
		p.enterFWS()

	default:
		switch {
		case p.token > 127 || p.token == 0 || p.token == '[':
			p.add(diagnosis.ErrExpectingDtext)
			return
		case p.token < 33 || p.token == 127:
			p.add(diagnosis.RFC5322DomLitObsDtext)
		}
		p.lit = append(p.lit, p.token)
		p.appendDomain(p.token)
		p.elementLen++
	}
}

// quoted-string = [CFWS] DQUOTE *([FWS] qcontent) [FWS] DQUOTE [CFWS]
func (p *addrParser) parseQuotedString() {
	switch p.token {
	case '\\':
		p.push(QuotedPair)

	case cr, htab:
		if !p.startFWS() {
			return
		}
		// a fold inside a quoted string is semantically a single space
		p.appendLocal(sp)
		p.elementLen++
		p.add(diagnosis.CFWSFWS)
		p.enterFWS()

	case '"':
		p.appendLocal(p.token)
		p.elementLen++
		p.pop()

	default:
		switch {
		case p.token > 127 || p.token == 0 || p.token == lf:
			p.add(diagnosis.ErrExpectingQtext)
		case p.token < 32 || p.token == 127:
			p.add(diagnosis.DeprecQtext)
		}
		p.appendLocal(p.token)
		p.elementLen++
	}
}

// quoted-pair = ("\" (VCHAR / WSP)) / obs-qp
//
// Whether the octet actually needed escaping is not checked.
func (p *addrParser) parseQuotedPair() {
	switch {
	case p.token > 127:
		p.add(diagnosis.ErrExpectingQpair)
	case (p.token < 31 && p.token != htab) || p.token == 127:
		p.add(diagnosis.DeprecQP)
	}

	p.pop()
	switch p.context {
	case Comment:
	case QuotedString:
		p.appendLocal('\\', p.token)
		p.elementLen += 2
	case Literal:
		p.appendDomain('\\', p.token)
		p.elementLen += 2
	default:
		p.fail("quoted pair in an invalid context")
	}
	// the escaped octet never terminates anything
	p.token = '\\'
}

// comment = "(" *([FWS] ccontent) [FWS] ")"
func (p *addrParser) parseComment() {
	switch p.token {
	case '(':
		p.push(Comment)

	case ')':
		p.pop()

	case '\\':
		p.push(QuotedPair)

	case cr, sp, htab:
		if !p.startFWS() {
			return
		}
		p.add(diagnosis.CFWSFWS)
		p.enterFWS()

	default:
		switch {
		case p.token > 127 || p.token == 0 || p.token == lf:
			p.add(diagnosis.ErrExpectingCtext)
		case p.token < 32 || p.token == 127:
			p.add(diagnosis.DeprecCtext)
		}
	}
}

// FWS = ([*WSP CRLF] 1*WSP) / obs-FWS
func (p *addrParser) parseFWS() {
	if p.tokenPrior == cr {
		if p.token == cr {
			p.add(diagnosis.ErrFWSCRLFx2)
			return
		}
		p.crlfCount++
		if p.crlfCount > 1 {
			p.add(diagnosis.DeprecFWS)
		}
	}

	switch p.token {
	case cr:
		p.consumeLF()
	case sp, htab:
	default:
		if p.tokenPrior == cr {
			p.add(diagnosis.ErrFWSCRLFEnd)
			break
		}
		p.crlfCount = 0
		p.pop()
		// hand the octet back to the enclosing context
		p.i--
	}

	p.tokenPrior = p.token
}
