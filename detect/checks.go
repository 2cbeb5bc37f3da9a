package detect

import "shrike/core"

// Check helpers query the analysis results tree through the value
// matcher. Single-result forms return one arbitrary matching artifact;
// the All forms return the full deduplicated match set. The Get forms
// hand back the underlying artifact records unfiltered.

// CheckFile checks for a file artifact across all processes and the
// default file action set.
func (b *Base) CheckFile(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().Files(0, nil)...)
}

// CheckFileAll returns every matching file artifact.
func (b *Base) CheckFileAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().Files(0, nil)...)
}

// CheckFileActions returns matching file artifacts narrowed to a process
// and action set. A zero pid means all processes; an empty action list
// means the default file action set.
func (b *Base) CheckFileActions(pattern string, regex bool, pid int64, actions ...string) []string {
	if len(actions) == 0 {
		actions = nil
	}
	return b.matcher.MatchAll(pattern, regex, b.Results().Files(pid, actions)...)
}

// CheckDLLLoaded checks for a loaded library.
func (b *Base) CheckDLLLoaded(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().DLLsLoaded(0)...)
}

// CheckDLLLoadedAll returns every matching loaded library.
func (b *Base) CheckDLLLoadedAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().DLLsLoaded(0)...)
}

// CheckCommandLine checks for an observed command line.
func (b *Base) CheckCommandLine(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().CommandLines()...)
}

// CheckCommandLineAll returns every matching command line.
func (b *Base) CheckCommandLineAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().CommandLines()...)
}

// CheckRegistryKey checks for a registry key artifact across the default
// registry action set.
func (b *Base) CheckRegistryKey(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().RegistryKeys(0, nil)...)
}

// CheckRegistryKeyAll returns every matching registry key artifact.
func (b *Base) CheckRegistryKeyAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().RegistryKeys(0, nil)...)
}

// CheckRegistryKeyActions returns matching registry keys narrowed to a
// process and action set.
func (b *Base) CheckRegistryKeyActions(pattern string, regex bool, pid int64, actions ...string) []string {
	if len(actions) == 0 {
		actions = nil
	}
	return b.matcher.MatchAll(pattern, regex, b.Results().RegistryKeys(pid, actions)...)
}

// CheckMutex checks for a created or opened mutex.
func (b *Base) CheckMutex(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().Mutexes(0)...)
}

// CheckMutexAll returns every matching mutex.
func (b *Base) CheckMutexAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().Mutexes(0)...)
}

// CheckIP checks for a contacted host address.
func (b *Base) CheckIP(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().Hosts()...)
}

// CheckIPAll returns every matching contacted host address.
func (b *Base) CheckIPAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().Hosts()...)
}

// CheckDomain checks for a resolved domain.
func (b *Base) CheckDomain(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().DomainNames()...)
}

// CheckDomainAll returns every matching resolved domain.
func (b *Base) CheckDomainAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().DomainNames()...)
}

// CheckURL checks for a requested URL.
func (b *Base) CheckURL(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().RequestedURIs()...)
}

// CheckURLAll returns every matching requested URL.
func (b *Base) CheckURLAll(pattern string, regex bool) []string {
	return b.matcher.MatchAll(pattern, regex, b.Results().RequestedURIs()...)
}

// CheckHash checks a pattern against the hashes of the submitted file.
func (b *Base) CheckHash(pattern string, regex bool) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, b.Results().TargetHashes()...)
}

// GetResolvedDomains returns the domain lookups observed on the wire.
func (b *Base) GetResolvedDomains() []core.DomainLookup {
	return b.Results().Network.Domains
}

// GetRequestedURLs returns every URL requested over HTTP.
func (b *Base) GetRequestedURLs() []string {
	return b.Results().RequestedURIs()
}

// GetDroppedFiles returns the files the sample wrote to disk.
func (b *Base) GetDroppedFiles() []core.DroppedFile {
	return b.Results().Dropped
}

// GetExtracted returns the payloads recovered by the unpackers.
func (b *Base) GetExtracted() []core.ExtractedPayload {
	return b.Results().Extracted
}
