package biz

import (
	"fmt"
	"strings"

	"credit-service/internal/constants"
)

const (
	identifyBaseInstruction = "You are an expert taxonomist, appraiser, and scientific researcher. Your task is to Identify the OBJECT in the image with EXTREME PRECISION and RELIABILITY.\n" +
		"RULES FOR ACCURACY:\n" +
		"1. If the specific breed/species/model is ambiguous, identify to the lowest certain taxonomic level.\n" +
		"2. Failure to identify match: Return specific error.\n" +
		"3. BE CONSERVATIVE. Better broadly correct than specifically wrong.\n"

	identifyCardSchema = "If valid, return JSON with: { \n" +
		"  title: string,\n" +
		"  description: string,\n" +
		"  key_details: [{ label: string, value: string, icon: string, color: string, featured?: boolean }], \n" +
		"  health_assessment?: { is_healthy: boolean, diagnosis: string, recommendations: string } (ONLY for PLANTS),\n" +
		"  sections: [{ title: string, content: string }]\n" +
		"}\n\n" +
		"IMPORTANT: You MUST generate the 'key_details' array using the following schemas for each feature type:\n"

	identifyGeneralInstruction = "Provide general identification."
	identifyJSONOnly           = "\nOutput valid JSON only."
)

// identifyInstructions 各识别功能的 key_details 模板，可被 ai_prompts 中的 identify_<feature> 覆盖
var identifyInstructions = map[string]string{
	"plant": "Identify precise Species.\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Toxicity', Icon: 'shield-check', Color: '#f0fdf4' (featured: true)\n" +
		"- Label: 'Care', Icon: 'leaf', Color: '#f8fafc'\n" +
		"- Label: 'Light', Icon: 'sun', Color: '#fff7ed'\n" +
		"- Label: 'Water', Icon: 'droplet', Color: '#eff6ff'\n" +
		"- Label: 'Soil', Icon: 'soil', Color: '#f5f5f4'\n" +
		"Also include 'health_assessment' object analyzing leaf health.",
	"fish": "Identify precise Fish Species.\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Season', Icon: 'calendar', Color: '#fefce8'\n" +
		"- Label: 'Regulation', Icon: 'scale', Color: '#fef2f2'\n" +
		"- Label: 'Location', Icon: 'waves', Color: '#eff6ff'\n" +
		"- Label: 'Edibility', Icon: 'utensils', Color: '#f0fdf4' (featured: true)\n" +
		"- Label: 'Max Size', Icon: 'ruler', Color: '#f5f5f4'",
	"cat": "Identify Cat Breed. If mixed, use 'Domestic Short/Long Hair'.\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Temperament', Icon: 'smile', Color: '#fefce8' (featured: true)\n" +
		"- Label: 'Origin', Icon: 'globe', Color: '#eff6ff'\n" +
		"- Label: 'Lifespan', Icon: 'calendar', Color: '#f0fdf4'\n" +
		"- Label: 'Weight', Icon: 'weight', Color: '#f5f5f4'\n" +
		"- Label: 'Hypoallergenic', Icon: 'shield-check', Color: '#fef2f2'",
	"dog": "Identify Dog Breed.\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Breed Group', Icon: 'soil', Color: '#f5f5f4'\n" +
		"- Label: 'Temperament', Icon: 'smile', Color: '#fefce8' (featured: true)\n" +
		"- Label: 'Size', Icon: 'ruler', Color: '#eff6ff'\n" +
		"- Label: 'Lifespan', Icon: 'calendar', Color: '#f0fdf4'\n" +
		"- Label: 'Exercise', Icon: 'dumbbell', Color: '#fef2f2'",
	"rock": "Identify Mineral/Crystal.\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Type', Icon: 'diamond', Color: '#f0fdf4' (featured: true)\n" +
		"- Label: 'Hardness Scale', Icon: 'hammer', Color: '#eff6ff'\n" +
		"- Label: 'Chemical Formula', Icon: 'flask', Color: '#eff6ff'",
	"insect": "Identify Insect Species.\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Family', Icon: 'bug', Color: '#fbece1'\n" +
		"- Label: 'Genus', Icon: 'dna', Color: '#e8f3fe'\n" +
		"- Label: 'Lifespan', Icon: 'calendar', Color: '#fff9e5'\n" +
		"- Label: 'Order', Icon: 'network', Color: '#f0f9ff'",
	"coin": "Identify Coin (Year, Mint, Issuer).\n" +
		"Populate 'key_details' with:\n" +
		"- Label: 'Issuer', Icon: 'landmark', Color: '#eff6ff'\n" +
		"- Label: 'Ref. Price', Icon: 'coins', Color: '#f0fdf4' (featured: true)\n" +
		"- Label: 'Year', Icon: 'calendar', Color: '#fefce8'\n" +
		"- Label: 'Composition', Icon: 'soil', Color: '#f5f5f4'",
	constants.IdentifyFeatureCustom: "Identify object. If product, set 'isProduct': true and include 'shopping_links'.",
}

// buildIdentifyPrompt 拼接识别提示词；custom 功能不做图片类别校验
func buildIdentifyPrompt(feature, instruction, language string) string {
	if instruction == "" {
		instruction = identifyInstructions[feature]
	}
	if instruction == "" {
		instruction = identifyGeneralInstruction
	}

	var b strings.Builder
	b.WriteString(identifyBaseInstruction)
	if feature != constants.IdentifyFeatureCustom {
		fmt.Fprintf(&b, "First, VALIDATION CHECK: Does this image contain a [%s]?\n", feature)
		fmt.Fprintf(&b, "If clearly NOT a [%s], return JSON: { \"error\": \"The image does not appear to contain a %s.\" }.\n", feature, feature)
	}
	b.WriteString(identifyCardSchema)
	b.WriteString(instruction)
	if language != "" {
		fmt.Fprintf(&b, "\nWrite every text value in the language with code %q.", language)
	}
	b.WriteString(identifyJSONOnly)
	return b.String()
}
