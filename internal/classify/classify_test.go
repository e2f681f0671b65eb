package classify

import "testing"

func TestPathCategories(t *testing.T) {
	cases := []struct {
		path string
		want Category
	}{
		{"/home/user/ComfyUI/models/checkpoints/sdxl_base.safetensors", CategoryCheckpoint},
		{"/models/loras/style/ink.safetensors", CategoryLoRA},
		{"/models/lycoris/detail.safetensors", CategoryLoRA},
		{"/models/vae/sdxl_vae.safetensors", CategoryVAE},
		{"/models/clip/clip_l.safetensors", CategoryTextEncoder},
		{"/models/text_encoders/t5xxl.safetensors", CategoryTextEncoder},
		{"/models/unet/flux1-dev.gguf", CategoryDiffusionModel},
		{"/models/diffusion_models/flux1-dev.safetensors", CategoryDiffusionModel},
		{"/models/embeddings/easynegative.pt", CategoryUnknown},
		{"random.bin", CategoryUnknown},
		{"", CategoryUnknown},
	}

	for _, tc := range cases {
		if got := Path(tc.path); got != tc.want {
			t.Errorf("Path(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestPathMatchesSegmentClosestToFile(t *testing.T) {
	// A loras directory nested under checkpoints should classify as lora.
	got := Path("/models/checkpoints/loras/nested.safetensors")
	if got != CategoryLoRA {
		t.Errorf("nested path = %q, want %q", got, CategoryLoRA)
	}
}

func TestPathIgnoresFileName(t *testing.T) {
	// A file literally named after a category directory does not match.
	got := Path("/models/embeddings/vae")
	if got != CategoryUnknown {
		t.Errorf("file named vae = %q, want %q", got, CategoryUnknown)
	}
}

func TestPathCaseInsensitive(t *testing.T) {
	if got := Path("/Models/Checkpoints/Model.ckpt"); got != CategoryCheckpoint {
		t.Errorf("mixed case = %q, want %q", got, CategoryCheckpoint)
	}
}

func TestKnown(t *testing.T) {
	if Known(CategoryUnknown) {
		t.Error("CategoryUnknown must not be Known")
	}
	for _, c := range Categories() {
		if !Known(c) {
			t.Errorf("category %q should be Known", c)
		}
	}
}
