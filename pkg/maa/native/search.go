package native

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables consulted by SearchPaths.
const (
	// EnvLibraryPath names the library file or its directory.
	EnvLibraryPath = "MAA_LIBRARY_PATH"
	// EnvSDKPath names an unpacked SDK; bin/ and lib/ are probed.
	EnvSDKPath = "MAA_SDK_PATH"
)

var siblingLibraries = []string{"MaaToolkit", "MaaAgentServer", "MaaAgentClient"}

// LibraryName returns the platform file name of the framework library.
func LibraryName() string {
	return platformName("MaaFramework")
}

func platformName(base string) string {
	switch runtime.GOOS {
	case "windows":
		return base + ".dll"
	case "darwin":
		return "lib" + base + ".dylib"
	default:
		return "lib" + base + ".so"
	}
}

// SearchPaths returns the locations probed for the library, in order.
//
// An explicit path is the only candidate. Otherwise the candidates are
// $MAA_LIBRARY_PATH, $MAA_SDK_PATH with its bin/ and lib/, the executable's
// directory with its lib/, and the working directory.
func SearchPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var dirs []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		dirs = append(dirs, p)
	}
	if p := os.Getenv(EnvSDKPath); p != "" {
		dirs = append(dirs, p, filepath.Join(p, "bin"), filepath.Join(p, "lib"))
	}
	if exe, err := os.Executable(); err == nil {
		d := filepath.Dir(exe)
		dirs = append(dirs, d, filepath.Join(d, "lib"))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return dirs
}

// findLibrary returns the first candidate that is a file, or a directory
// holding LibraryName. searched lists every probed path on failure.
func findLibrary(candidates []string) (file string, searched []string) {
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil {
			searched = append(searched, c)
			continue
		}
		if !info.IsDir() {
			return c, nil
		}
		f := filepath.Join(c, LibraryName())
		if fi, err := os.Stat(f); err == nil && !fi.IsDir() {
			return f, nil
		}
		searched = append(searched, f)
	}
	return "", searched
}

// siblingFiles returns the existing sibling libraries next to file.
func siblingFiles(file string) []string {
	dir := filepath.Dir(file)
	if !strings.EqualFold(filepath.Base(file), LibraryName()) {
		return nil
	}
	var out []string
	for _, name := range siblingLibraries {
		p := filepath.Join(dir, platformName(name))
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
