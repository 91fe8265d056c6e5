package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Line shapes recognized in uv debug output. Matching is ordered: transport
// trace shapes first (they are by far the most frequent), then milestone
// lines, then resolver chatter. Anything else is an unknown line.
var (
	// "   0.123456s TRACE ..." relative timestamp prefix.
	timestampRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)(?:s|ms)\b`)

	// frame=Data { stream_id: StreamId(7), flags: (0x1: END_STREAM) }
	dataFrameRe = regexp.MustCompile(`frame=Data\s*\{\s*stream_id:\s*StreamId\((\d+)\)`)

	// send frame=Headers { stream_id: StreamId(7), ... } opens an outbound
	// request; the requested URL may appear on the same line.
	headersFrameRe = regexp.MustCompile(`frame=Headers\s*\{\s*stream_id:\s*StreamId\((\d+)\)`)

	// frame=Settings { ..., max_frame_size: 16384 }
	settingsFrameRe = regexp.MustCompile(`frame=Settings\b.*?max_frame_size[:=]\s*(\d+)`)

	urlRe = regexp.MustCompile(`https?://\S+`)

	// "No cache entry for: https://files.pythonhosted.org/.../x.whl"
	requestURLRe = regexp.MustCompile(`(?:No cache entry for|Fetching|Sending HTTP request for):?\s+(https?://\S+)`)

	// content-disposition: attachment; filename="aiohttp-3.12.15-....whl"
	dispositionRe = regexp.MustCompile(`(?i)content-disposition:\s*(.+?)\s*$`)

	// DEBUG uv uv 0.5.9 (a1b2c3d 2024-12-10)
	startupRe = regexp.MustCompile(`DEBUG\s+uv\s+(?:uv\s+)?(\d[\w.+-]*)\s+\([0-9a-f]+\s+\d{4}-\d{2}-\d{2}\)`)

	requirementsRe = regexp.MustCompile(`Reading requirements\s+(?:from:?\s+)?(\S+)`)

	solvingRe = regexp.MustCompile(`Solving with (?:installed|target) Python version:?\s+([\d.]+)`)

	// Per-dependency resolver chatter. Carries the package under
	// consideration but never re-enters the resolving phase by itself.
	directDepRe = regexp.MustCompile(`Adding direct dependency:\s+([A-Za-z0-9_.-]+)\s*(.*)$`)
	searchingRe = regexp.MustCompile(`Searching for a compatible version of\s+([A-Za-z0-9_.-]+)\s*(.*)$`)

	resolvedRe = regexp.MustCompile(`\bResolved\s+(\d+)\s+packages?\s+in\s+(\d+(?:\.\d+)?)(ms|s)\b`)

	// Wheel metadata appears in two trace spellings; both give the exact
	// size (or None) and the source URL.
	wheelStructRe = regexp.MustCompile(`Whl\s*\{\s*name:\s*"([^"]+)",\s*version:\s*"([^"]+)",\s*size:\s*(?:Some\((\d+)\)|None),\s*url:\s*"([^"]+)"`)
	wheelAttrRe   = regexp.MustCompile(`\bname=([A-Za-z0-9_.-]+)\s+version=(\S+)\s+size=(?:Some\((\d+)\)|None)\s+url="?([^"\s]+)"?`)

	prepareTotalRe = regexp.MustCompile(`preparer::prepare\s+total=(\d+)`)

	preparedRe = regexp.MustCompile(`\bPrepared\s+(\d+)\s+packages?\s+in\s+(\d+(?:\.\d+)?)(ms|s)\b`)

	installBlockingRe = regexp.MustCompile(`install_blocking\s+num_wheels=(\d+)`)

	uninstalledRe = regexp.MustCompile(`\bUninstalled\s+(\d+)\s+packages?\s+in\s+(\d+(?:\.\d+)?)(ms|s)\b`)
	installedRe   = regexp.MustCompile(`\bInstalled\s+(\d+)\s+packages?\s+in\s+(\d+(?:\.\d+)?)(ms|s)\b`)

	errorRe = regexp.MustCompile(`^\s*(?:error:|ERROR\b|×)\s*(.*)$`)
)

type matchKind int

const (
	matchNone matchKind = iota
	matchStarted
	matchRequirements
	matchSolving
	matchDependency
	matchResolved
	matchWheel
	matchPrepareTotal
	matchPrepared
	matchInstallBlocking
	matchUninstalled
	matchInstalled
	matchError
	matchRequestURL
	matchSendHeaders
	matchDataFrame
	matchSettings
	matchDisposition
)

// lineMatch is the raw classification of one line before state is applied.
type lineMatch struct {
	kind matchKind

	version    string
	path       string
	pkg        string
	constraint string
	count      int
	durationMS int64
	size       int64
	sizeKnown  bool
	url        string
	streamID   uint64
	endStream  bool
	frameSize  int64
	header     string
	text       string

	// hasTimestamp/timestamp carry the optional relative "N.NNNs" prefix.
	hasTimestamp bool
	timestamp    float64
}

// classify matches one line against the known shapes.
func classify(line string) lineMatch {
	var m lineMatch

	if ts := timestampRe.FindStringSubmatch(line); ts != nil {
		if v, err := strconv.ParseFloat(ts[1], 64); err == nil {
			m.hasTimestamp = true
			m.timestamp = v
		}
	}

	// Transport trace shapes first: the hot path during downloads.
	if g := dataFrameRe.FindStringSubmatch(line); g != nil {
		m.kind = matchDataFrame
		m.streamID, _ = strconv.ParseUint(g[1], 10, 64)
		m.endStream = strings.Contains(line, "END_STREAM")
		return m
	}
	if g := headersFrameRe.FindStringSubmatch(line); g != nil {
		// Only outbound Headers frames open a request stream.
		if strings.Contains(line, "send") {
			m.kind = matchSendHeaders
			m.streamID, _ = strconv.ParseUint(g[1], 10, 64)
			if u := urlRe.FindString(line); u != "" {
				m.url = strings.Trim(u, `",)`)
			}
			return m
		}
		return lineMatch{hasTimestamp: m.hasTimestamp, timestamp: m.timestamp}
	}
	if g := settingsFrameRe.FindStringSubmatch(line); g != nil {
		m.kind = matchSettings
		m.frameSize, _ = strconv.ParseInt(g[1], 10, 64)
		return m
	}
	if g := dispositionRe.FindStringSubmatch(line); g != nil {
		m.kind = matchDisposition
		m.header = g[1]
		return m
	}

	if g := wheelStructRe.FindStringSubmatch(line); g != nil {
		return wheelMatch(m, g)
	}
	if g := wheelAttrRe.FindStringSubmatch(line); g != nil {
		return wheelMatch(m, g)
	}

	if g := requestURLRe.FindStringSubmatch(line); g != nil {
		m.kind = matchRequestURL
		m.url = strings.Trim(g[1], `",)`)
		return m
	}

	// Milestone lines. Uninstalled must be tried before Installed.
	if g := resolvedRe.FindStringSubmatch(line); g != nil {
		m.kind = matchResolved
		m.count, _ = strconv.Atoi(g[1])
		m.durationMS = toMilliseconds(g[2], g[3])
		return m
	}
	if g := preparedRe.FindStringSubmatch(line); g != nil {
		m.kind = matchPrepared
		m.count, _ = strconv.Atoi(g[1])
		m.durationMS = toMilliseconds(g[2], g[3])
		return m
	}
	if g := uninstalledRe.FindStringSubmatch(line); g != nil {
		m.kind = matchUninstalled
		m.count, _ = strconv.Atoi(g[1])
		m.durationMS = toMilliseconds(g[2], g[3])
		return m
	}
	if g := installedRe.FindStringSubmatch(line); g != nil {
		m.kind = matchInstalled
		m.count, _ = strconv.Atoi(g[1])
		m.durationMS = toMilliseconds(g[2], g[3])
		return m
	}
	if g := installBlockingRe.FindStringSubmatch(line); g != nil {
		m.kind = matchInstallBlocking
		m.count, _ = strconv.Atoi(g[1])
		return m
	}
	if g := prepareTotalRe.FindStringSubmatch(line); g != nil {
		m.kind = matchPrepareTotal
		m.count, _ = strconv.Atoi(g[1])
		return m
	}

	if g := startupRe.FindStringSubmatch(line); g != nil {
		m.kind = matchStarted
		m.version = g[1]
		return m
	}
	if g := solvingRe.FindStringSubmatch(line); g != nil {
		m.kind = matchSolving
		m.version = g[1]
		return m
	}
	if g := requirementsRe.FindStringSubmatch(line); g != nil {
		m.kind = matchRequirements
		m.path = strings.TrimSuffix(g[1], ":")
		return m
	}
	if g := directDepRe.FindStringSubmatch(line); g != nil {
		m.kind = matchDependency
		m.pkg = g[1]
		m.constraint = strings.TrimSpace(g[2])
		return m
	}
	if g := searchingRe.FindStringSubmatch(line); g != nil {
		m.kind = matchDependency
		m.pkg = g[1]
		m.constraint = strings.TrimSpace(g[2])
		return m
	}

	if g := errorRe.FindStringSubmatch(line); g != nil {
		m.kind = matchError
		m.text = strings.TrimSpace(g[1])
		return m
	}

	// Everything else, including informational "Downloading aiohttp (459.2KB)"
	// banners, is unclassified. Those banners are deliberately not a
	// download-start signal: record creation happens only on wheel metadata
	// with an exact size.
	return lineMatch{hasTimestamp: m.hasTimestamp, timestamp: m.timestamp}
}

func wheelMatch(m lineMatch, g []string) lineMatch {
	m.kind = matchWheel
	m.pkg = normalizePackage(g[1])
	m.version = g[2]
	if g[3] != "" {
		m.size, _ = strconv.ParseInt(g[3], 10, 64)
		m.sizeKnown = true
	}
	m.url = g[4]
	return m
}

// toMilliseconds normalizes a duration given in seconds or milliseconds.
func toMilliseconds(value, unit string) int64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	if unit == "s" {
		v *= 1000
	}
	return int64(v)
}

// normalizePackage lowercases a package name and folds underscores to
// hyphens, matching how uv names distributions.
func normalizePackage(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}
