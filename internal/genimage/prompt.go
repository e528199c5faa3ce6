package genimage

import "fmt"

// Prompts are kept in one place so every backend renders the same scene
// vocabulary. The person-identity clause appears in all of them; outputs
// feed back in as inputs and drift compounds fast otherwise.

func modelPrompt() string {
	return "Create a photorealistic full-body shot of the person in this photo " +
		"standing against a plain light-gray studio background. " +
		"Full body visible head to toe, facing the camera, arms relaxed. " +
		"Preserve the person's face, hair, skin tone and body shape exactly. " +
		"Return the image only."
}

func tryOnPrompt(garmentName string) string {
	return fmt.Sprintf("The first image is the model, the second image is a garment (%s). "+
		"Render the same person wearing that garment over their current outfit where layering "+
		"makes sense, or replacing the matching clothing item otherwise. "+
		"Keep the person's identity, body shape, pose and the background unchanged. "+
		"Return the image only.", garmentName)
}

func posePrompt(pose string) string {
	return fmt.Sprintf("Re-render this exact person, outfit and background in a new pose: %s. "+
		"Do not change the person's identity, the clothing or the lighting. "+
		"Return the image only.", pose)
}
