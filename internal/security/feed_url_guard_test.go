package security

import (
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	guard := NewFeedURLGuard(5 * time.Second)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"正常なhttps URL", "https://example.com/feed.xml", false},
		{"正常なhttp URL", "http://example.com/rss", false},
		{"空のURL", "", true},
		{"スキームなし", "example.com/feed.xml", true},
		{"ftpスキーム", "ftp://example.com/feed.xml", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"javascriptスキーム", "javascript:alert(1)", true},
		{"localhost", "http://localhost/feed", true},
		{"localhost大文字", "http://LOCALHOST/feed", true},
		{"ループバックIP", "http://127.0.0.1/feed", true},
		{"プライベートIP 10系", "http://10.0.0.5/feed", true},
		{"プライベートIP 172系", "http://172.16.0.1/feed", true},
		{"プライベートIP 192系", "http://192.168.1.1/feed", true},
		{"リンクローカル（クラウドメタデータ）", "http://169.254.169.254/latest/meta-data", true},
		{"IPv6ループバック", "http://[::1]/feed", true},
		{"パブリックIP", "http://93.184.216.34/feed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateURL(%q) = nil, want エラー", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}
