package models

import "testing"

func TestResolveImage(t *testing.T) {
	tests := []struct {
		name string
		park Park
		base string
		want string
	}{
		{
			name: "absolute url wins",
			park: Park{ImageURL: "https://cdn.example.com/a.jpg", ImagePath: "parks/a.jpg"},
			base: "https://storage.example.com/public",
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "relative path joined onto base",
			park: Park{ImagePath: "parks/a.jpg"},
			base: "https://storage.example.com/public",
			want: "https://storage.example.com/public/parks/a.jpg",
		},
		{
			name: "slashes are not doubled",
			park: Park{ImagePath: "/parks/a.jpg"},
			base: "https://storage.example.com/public/",
			want: "https://storage.example.com/public/parks/a.jpg",
		},
		{
			name: "relative path without base",
			park: Park{ImagePath: "parks/a.jpg"},
			want: PlaceholderImage,
		},
		{
			name: "no image",
			park: Park{},
			base: "https://storage.example.com/public",
			want: PlaceholderImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveImage(tt.park, tt.base); got != tt.want {
				t.Errorf("ResolveImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageResolver_MarkFailed(t *testing.T) {
	r := NewImageResolver("https://storage.example.com")
	p := Park{ID: "4", ImageURL: "https://cdn.example.com/broken.png"}

	if got := r.Resolve(p); got != p.ImageURL {
		t.Fatalf("Resolve() = %q, want %q", got, p.ImageURL)
	}

	r.MarkFailed(p.ID)

	if !r.Failed(p.ID) {
		t.Error("Failed() = false after MarkFailed")
	}
	// the failed url is never offered again
	for i := 0; i < 3; i++ {
		if got := r.Resolve(p); got != PlaceholderImage {
			t.Errorf("Resolve() after failure = %q, want placeholder", got)
		}
	}

	other := Park{ID: "5", ImageURL: "https://cdn.example.com/ok.png"}
	if got := r.Resolve(other); got != other.ImageURL {
		t.Errorf("Resolve(other) = %q, want %q", got, other.ImageURL)
	}
}
