package transcribe

import (
	"reflect"
	"testing"
)

func TestLocalArgs(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "defaults",
			opts: Options{},
			want: []string{"/tmp/helper.py", "--audio", "/audio/call.wav", "--model", "base"},
		},
		{
			name: "language_hint_forwarded",
			opts: Options{Language: "de"},
			want: []string{"/tmp/helper.py", "--audio", "/audio/call.wav", "--model", "base", "--language", "de"},
		},
		{
			name: "diarization_requested",
			opts: Options{Diarize: true},
			want: []string{"/tmp/helper.py", "--audio", "/audio/call.wav", "--model", "base", "--diarize"},
		},
		{
			name: "language_and_diarization",
			opts: Options{Language: "en", Diarize: true},
			want: []string{"/tmp/helper.py", "--audio", "/audio/call.wav", "--model", "base", "--language", "en", "--diarize"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := localArgs("/tmp/helper.py", "/audio/call.wav", "base", tc.opts)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("localArgs = %v, want %v", got, tc.want)
			}
		})
	}
}
