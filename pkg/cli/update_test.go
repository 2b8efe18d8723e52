package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectAssetForPlatform(t *testing.T) {
	assets := []releaseAsset{
		{Name: "blurkit_1.2.0_windows_amd64.zip", BrowserDownloadURL: "https://dl/win"},
		{Name: "blurkit_1.2.0_darwin_arm64.tar.gz", BrowserDownloadURL: "https://dl/mac"},
		{Name: "blurkit_1.2.0_linux_amd64.tar.gz", BrowserDownloadURL: "https://dl/linux-amd64"},
		{Name: "blurkit_1.2.0_linux_arm64.tar.gz", BrowserDownloadURL: "https://dl/linux-arm64"},
	}

	assert.Equal(t, "https://dl/linux-amd64", selectAssetFor(assets, "linux", "amd64"))
	assert.Equal(t, "https://dl/linux-arm64", selectAssetFor(assets, "linux", "arm64"))
	assert.Equal(t, "https://dl/mac", selectAssetFor(assets, "darwin", "arm64"))
	assert.Equal(t, "https://dl/win", selectAssetFor(assets, "windows", "amd64"))
}

func TestSelectAssetFallsBackToOSOnly(t *testing.T) {
	assets := []releaseAsset{
		{Name: "blurkit-windows.zip", BrowserDownloadURL: "https://dl/win"},
		{Name: "blurkit-linux.tar.gz", BrowserDownloadURL: "https://dl/linux"},
	}
	// no arch token on the linux asset; OS match still wins
	assert.Equal(t, "https://dl/linux", selectAssetFor(assets, "linux", "amd64"))
}

func TestSelectAssetNeverPicksForeignOS(t *testing.T) {
	assets := []releaseAsset{
		{Name: "blurkit_windows_amd64.zip", BrowserDownloadURL: "https://dl/win"},
		{Name: "blurkit_darwin_amd64.tar.gz", BrowserDownloadURL: "https://dl/mac"},
	}
	assert.Empty(t, selectAssetFor(assets, "linux", "amd64"))

	// an OS-less asset is acceptable as a last resort
	assets = append(assets, releaseAsset{Name: "blurkit-src.tar.gz", BrowserDownloadURL: "https://dl/src"})
	assert.Equal(t, "https://dl/src", selectAssetFor(assets, "linux", "amd64"))
}
