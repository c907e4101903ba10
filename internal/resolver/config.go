package resolver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DNSConfig holds DNS configuration.
type DNSConfig struct {
	Servers  []string      // name servers to use, as host:port
	Search   []string      // rooted suffixes to append to local name
	Ndots    int           // number of dots in name to trigger absolute lookup
	Timeout  time.Duration // wait before giving up on a query, including retries
	Attempts int           // lost packets before giving up on server
	Rotate   bool          // round robin among servers
	UseTCP   bool          // force usage of TCP for DNS resolutions
	TrustAD  bool          // add AD flag to queries
	EDNS0    bool          // use EDNS0 extension
	NoReload bool          // do not check for config file updates
}

// nameList returns a list of names for sequential DNS queries.
func (conf *DNSConfig) nameList(name string) []string {
	l := len(name)
	rooted := l > 0 && name[l-1] == '.'
	if l > 254 || l == 254 && !rooted {
		return nil
	}

	if rooted {
		if avoidDNS(name) {
			return nil
		}
		return []string{name}
	}

	hasNdots := strings.Count(name, ".") >= conf.Ndots
	name += "."

	names := make([]string, 0, 1+len(conf.Search))
	if hasNdots && !avoidDNS(name) {
		names = append(names, name)
	}
	for _, suffix := range conf.Search {
		fqdn := name + suffix
		if !avoidDNS(fqdn) && len(fqdn) <= 254 {
			names = append(names, fqdn)
		}
	}
	if !hasNdots && !avoidDNS(name) {
		names = append(names, name)
	}
	return names
}

var dnsConfigProtoDefault = DNSConfig{
	Servers:  []string{"127.0.0.1:53", "[::1]:53"},
	Ndots:    1,
	Timeout:  5 * time.Second,
	Attempts: 2,
	EDNS0:    true,
}

// DefaultConfig returns the configuration used when resolv.conf names no
// servers. The returned value is a copy and may be modified freely.
func DefaultConfig() DNSConfig {
	conf := dnsConfigProtoDefault
	conf.Servers = append([]string(nil), conf.Servers...)
	conf.Search = dnsDefaultSearch()
	return conf
}

// GetSystemDNSConfig returns the configuration read from /etc/resolv.conf,
// reloading it when the file changes.
func GetSystemDNSConfig(ctx context.Context) (*DNSConfig, error) {
	return systemLoader().Get(ctx)
}

var systemLoader = sync.OnceValue(func() *ResolvConfLoader {
	loader, err := NewResolvConfLoader()
	if err != nil {
		panic(err)
	}
	return loader
})

// A ResolvConfLoader loads name server configuration from resolv.conf.
type ResolvConfLoader struct {
	nowGetter      func() time.Time
	cacheMaxAge    time.Duration // how long a successful read is trusted before checking mtime again
	noReload       bool
	resolvConfPath string

	mu        sync.Mutex
	expiry    time.Time
	lastMtime time.Time
	dnsConfig *DNSConfig
}

// Get returns the cached configuration, re-reading the file if it has changed
// since the last read. A missing file yields DefaultConfig.
func (loader *ResolvConfLoader) Get(ctx context.Context) (*DNSConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapErr(err)
	}
	loader.mu.Lock()
	defer loader.mu.Unlock()

	now := loader.nowGetter()
	last := loader.dnsConfig
	if last != nil {
		if loader.noReload || last.NoReload || now.Before(loader.expiry) {
			return last, nil
		}
		fi, err := os.Stat(loader.resolvConfPath)
		if err == nil && fi.ModTime().Equal(loader.lastMtime) {
			loader.expiry = now.Add(loader.cacheMaxAge)
			return last, nil
		}
	}

	conf, mtime, err := loader.load()
	if err != nil {
		if last != nil {
			return last, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		c := DefaultConfig()
		conf = &c
	}
	loader.expiry = now.Add(loader.cacheMaxAge)
	loader.lastMtime = mtime
	loader.dnsConfig = conf
	return conf, nil
}

// ResolverOptionFunc configures either a Resolver or a ResolvConfLoader.
// Options that do not apply to the receiver return an error.
type ResolverOptionFunc func(any) error

func WithResolvConfPath(path string) ResolverOptionFunc {
	return func(loader any) error {
		switch loader := (loader).(type) {
		case *ResolvConfLoader:
			loader.resolvConfPath = path
		default:
			return errors.New("unsupported loader type")
		}
		return nil
	}
}

func NewResolvConfLoader(options ...ResolverOptionFunc) (*ResolvConfLoader, error) {
	loader := &ResolvConfLoader{
		nowGetter:      time.Now,
		cacheMaxAge:    5 * time.Second,
		resolvConfPath: "/etc/resolv.conf",
	}
	for _, fn := range options {
		if err := fn(loader); err != nil {
			return nil, err
		}
	}
	return loader, nil
}

func (loader *ResolvConfLoader) load() (*DNSConfig, time.Time, error) {
	f, err := os.Open(loader.resolvConfPath)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}
	conf, err := parseResolvConf(f)
	if err != nil {
		return nil, time.Time{}, err
	}
	return conf, fi.ModTime(), nil
}

// See resolv.conf(5) on a Linux machine.
func parseResolvConf(r io.Reader) (*DNSConfig, error) {
	conf := dnsConfigProtoDefault
	conf.Servers = nil
	conf.Search = dnsDefaultSearch()

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if len(line) > 0 && (line[0] == ';' || line[0] == '#') {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		switch fields[0] {
		case "nameserver":
			// only IP addresses; anything else would need DNS to look it up
			if len(fields) > 1 && len(conf.Servers) < 3 {
				if _, err := netip.ParseAddr(fields[1]); err == nil {
					conf.Servers = append(conf.Servers, net.JoinHostPort(fields[1], "53"))
				}
			}

		case "domain":
			if len(fields) > 1 {
				conf.Search = []string{ensureRooted(fields[1])}
			}

		case "search":
			conf.Search = make([]string, 0, len(fields)-1)
			for _, f := range fields[1:] {
				if name := ensureRooted(f); name != "." {
					conf.Search = append(conf.Search, name)
				}
			}

		case "options":
			for _, opt := range fields[1:] {
				key, value, hasValue := strings.Cut(opt, ":")
				switch key {
				case "ndots":
					conf.Ndots = clampAtoi(value, 0, 15)
				case "timeout":
					conf.Timeout = time.Duration(clampAtoi(value, 1, 30)) * time.Second
				case "attempts":
					conf.Attempts = clampAtoi(value, 1, 5)
				case "rotate":
					conf.Rotate = !hasValue
				case "use-vc", "usevc", "tcp":
					conf.UseTCP = !hasValue
				case "trust-ad":
					conf.TrustAD = !hasValue
				case "edns0":
					conf.EDNS0 = !hasValue
				case "no-reload":
					conf.NoReload = !hasValue
				}
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(conf.Servers) == 0 {
		conf.Servers = append([]string(nil), dnsConfigProtoDefault.Servers...)
	}
	return &conf, nil
}

func clampAtoi(s string, lo, hi int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

var getHostname = os.Hostname // variable for testing

func dnsDefaultSearch() []string {
	hn, err := getHostname()
	if err != nil {
		return nil
	}
	if i := strings.IndexByte(hn, '.'); i >= 0 && i < len(hn)-1 {
		return []string{ensureRooted(hn[i+1:])}
	}
	return nil
}

func ensureRooted(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s
	}
	return s + "."
}

func init() {
	OptionFuncHooks.CacheMaxAge = OptionFuncHooks.CacheMaxAge.Add(func(loader any, value time.Duration) (bool, error) {
		if loader, ok := (loader).(*ResolvConfLoader); ok {
			loader.cacheMaxAge = value
			return true, nil
		}
		return false, nil
	})
	OptionFuncHooks.NowGetter = OptionFuncHooks.NowGetter.Add(func(loader any, value func() time.Time) (bool, error) {
		if loader, ok := (loader).(*ResolvConfLoader); ok {
			loader.nowGetter = value
			return true, nil
		}
		return false, nil
	})
	OptionFuncHooks.NoReload = OptionFuncHooks.NoReload.Add(func(loader any, value bool) (bool, error) {
		if loader, ok := (loader).(*ResolvConfLoader); ok {
			loader.noReload = value
			return true, nil
		}
		return false, nil
	})
}
