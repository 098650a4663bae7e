package entities

import "testing"

func TestTypeForMime(t *testing.T) {
	cases := map[string]MediaType{
		"image/png":                MediaTypeImage,
		"IMAGE/JPEG":               MediaTypeImage,
		"video/mp4":                MediaTypeVideo,
		"audio/mpeg":               MediaTypeAudio,
		"text/plain; charset=utf8": MediaTypeDocument,
	}
	for mime, want := range cases {
		got, ok := TypeForMime(mime)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %s (%v)", mime, want, got, ok)
		}
	}
	if _, ok := TypeForMime("application/x-msdownload"); ok {
		t.Fatalf("expected executables to be rejected")
	}
}

func TestMaxSizePerType(t *testing.T) {
	if MaxSize(MediaTypeImage) != 25*MB || MaxSize(MediaTypeVideo) != 2048*MB {
		t.Fatalf("unexpected limits")
	}
}

func TestMediaTransitions(t *testing.T) {
	if !CanTransition(StatusPendingUpload, StatusUploaded) || !CanTransition(StatusProcessing, StatusReady) {
		t.Fatalf("expected upload pipeline transitions")
	}
	if CanTransition(StatusReady, StatusProcessing) || CanTransition(StatusDeleted, StatusReady) {
		t.Fatalf("expected terminal transitions to be rejected")
	}
}

func TestSanitizeFilenameAndKey(t *testing.T) {
	if got := SanitizeFilename("../../etc/Poster.PNG"); got != "Poster.PNG" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := StorageKeyFor("u1", "m1", "Poster.PNG"); got != "media/u1/m1.png" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestValidChecksum(t *testing.T) {
	if !ValidChecksum("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855") {
		t.Fatalf("expected sha256 hex to be valid")
	}
	if ValidChecksum("XYZ") {
		t.Fatalf("expected short checksum to be invalid")
	}
}
