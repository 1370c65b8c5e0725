package chains

import (
	"sort"
	"strings"
	"sync"
)

// AliasBook maps actor names (MASTER, VAULT, USER-1, ...) to per-chain
// addresses. Fixture sequences speak in aliases; the book resolves them to
// concrete addresses at dispatch time. The upstream system held these in
// module-level globals, mutated when a vault address was learned at startup;
// here the book is an explicit object handed to whoever needs it.
type AliasBook struct {
	mu      sync.RWMutex
	byChain map[string]map[string]string
}

// NewAliasBook creates an empty book.
func NewAliasBook() *AliasBook {
	return &AliasBook{byChain: make(map[string]map[string]string)}
}

// DefaultAliases returns the actor set the reference fixtures use, with a
// deterministic address per chain.
func DefaultAliases() *AliasBook {
	b := NewAliasBook()
	addrs := map[string]map[string]string{
		"BNB": {
			"MASTER":     "tbnb1ht7v08hv2lhtmk8y7szl2hjexqryc3hcldlztl",
			"CONTRIB":    "tbnb1lltanv67yztkpt5czw4ajsmg94dlqnnhrq7zqm",
			"USER-1":     "tbnb189az9plcke2c00vns0zfmllfpfdw67dtv25kgx",
			"PROVIDER-1": "tbnb1mkymsmnqenxthlmaa9f60kd6wgr9yjy9h5mz6q",
			"PROVIDER-2": "tbnb1zxqtpfp3s5dd75c3rmvy0wxmjdcn2u63gwewuh",
			"VAULT":      "tbnb14jg77k8nwcz577zwd2gvdnpe2yy46j0hkvdvlg",
		},
		"BTC": {
			"MASTER":     "bcrt1qj08ys4ct2hzzc2hcz6h2hgrvlmsjynawtaa5zq",
			"USER-1":     "bcrt1qqqnde7kqe5sf96j6zf8jpzwr44dh4gkd3ehaqh",
			"PROVIDER-1": "bcrt1qzupk5lmc84r2dh738a9g3zscavannjy3arptzw",
			"PROVIDER-2": "bcrt1qqfmzftwe27xuttq5c9v4pmqrcrl7vtmzhkhqcz",
			"VAULT":      "bcrt1qcsmjtq0jyyzcvpkilnkvrmyhwknhad45cetxfe",
		},
		"BCH": {
			"MASTER":     "qpj08ys4ct2hzzc2hcz6h2hgrvlmsjynawknn3y0c9",
			"USER-1":     "qzqnde7kqe5sf96j6zf8jpzwr44dh4gkdcymcuv79m",
			"PROVIDER-1": "qpupk5lmc84r2dh738a9g3zscavannjy3ggchrnesh",
			"PROVIDER-2": "qzfmzftwe27xuttq5c9v4pmqrcrl7vtmzyv0t0sjhk",
			"VAULT":      "qrsmjtq0jyyzcvpkilnkvrmyhwknhad45ykwfmjxdc",
		},
		"LTC": {
			"MASTER":     "rltc1qj08ys4ct2hzzc2hcz6h2hgrvlmsjynawt7wkeq",
			"USER-1":     "rltc1qqqnde7kqe5sf96j6zf8jpzwr44dh4gkdnmr8mr",
			"PROVIDER-1": "rltc1qzupk5lmc84r2dh738a9g3zscavannjy3t3expd",
			"PROVIDER-2": "rltc1qqfmzftwe27xuttq5c9v4pmqrcrl7vtmz357hnv",
			"VAULT":      "rltc1qcsmjtq0jyyzcvpkilnkvrmyhwknhad45slk0nt",
		},
		"ETH": {
			"MASTER":     "0x3fd2d4ce97b082d4bce3f9fee2a3d60668d2f473",
			"CONTRIB":    "0x970e8128ab834e8eac17ab8e3812f010678cf791",
			"USER-1":     "0xf6da288748ec4c77642f6c5543717539b3ae001b",
			"PROVIDER-1": "0xfabb9cc6ec839b1214bb11c53377a56a6ed81762",
			"PROVIDER-2": "0x1f30a82340f08d30f3b2a1a0354ad4101a32429d",
			"VAULT":      "0xe65e9d372f8cacc7b6dfcd4af6507851ed31bb44",
		},
		"THOR": {
			"MASTER":     "tthor1j08ys4ct2hzzc2hcz6h2hgrvlmsjynaw443xjc",
			"USER-1":     "tthor1zf3gsk7edzwl9syyefvfhle37cjtql35h6k85m",
			"PROVIDER-1": "tthor1kljxxccrheghavaw97u78le6yy3sdj7h696nl4",
			"PROVIDER-2": "tthor1zupk5lmc84r2dh738a9g3zscavannjy3nzplwt",
			"VAULT":      "tthor1g98cy3n9mmjrpn0sxmn63lztelera37nrytwp2",
		},
	}
	for chain, set := range addrs {
		for alias, addr := range set {
			b.Set(chain, alias, addr)
		}
	}
	return b
}

// Set records one alias address.
func (b *AliasBook) Set(chain, alias, address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.byChain[chain] == nil {
		b.byChain[chain] = make(map[string]string)
	}
	b.byChain[chain][alias] = address
}

// Address resolves an alias on a chain; unknown aliases resolve to
// themselves so already-concrete addresses pass through.
func (b *AliasBook) Address(chain, alias string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if addr, ok := b.byChain[chain][alias]; ok {
		return addr
	}
	return alias
}

// Alias reverse-resolves an address back to its actor name, or returns the
// address unchanged when unnamed.
func (b *AliasBook) Alias(chain, address string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for alias, addr := range b.byChain[chain] {
		if addr == address {
			return alias
		}
	}
	return address
}

// Aliases returns every actor name known on any chain, sorted.
func (b *AliasBook) Aliases() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]bool)
	for _, set := range b.byChain {
		for alias := range set {
			seen[alias] = true
		}
	}
	out := make([]string, 0, len(seen))
	for alias := range seen {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// ResolveMemo substitutes every alias appearing in a memo with its address
// on the given chain. Swap memos name destination addresses by actor;
// the live node only understands concrete addresses.
func (b *AliasBook) ResolveMemo(chain, memo string) string {
	for _, alias := range b.Aliases() {
		if strings.Contains(memo, alias) {
			memo = strings.ReplaceAll(memo, alias, b.Address(chain, alias))
		}
	}
	return memo
}
