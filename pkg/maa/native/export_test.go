package native

// Reset unpublishes the table so each test starts unloaded.
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	current.Store(nil)
	opened = nil
}

var (
	FindLibrary  = findLibrary
	SiblingFiles = siblingFiles
)

// SetMaxCString lowers the NUL scan limit until the returned func runs.
func SetMaxCString(n int) (restore func()) {
	old := maxCString
	maxCString = n
	return func() { maxCString = old }
}
