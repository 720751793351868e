package classify

const qualityPrompt = `You are an educational image quality assessor. Evaluate the uploaded image and classify its quality for content extraction.

Analyze the image for:
1. Clarity/Sharpness - Are text and details clearly visible?
2. Lighting - Is it well-lit without glare or shadows?
3. Angle - Is it straight with minimal tilt?
4. Resolution - Is it sufficient for text extraction?
5. Noise/Artifacts - Any blur or compression issues?

Classifications:
- HIGH: Excellent quality (90-100% confidence) - Perfect for OCR
- MEDIUM: Good quality (60-89% confidence) - Readable with minor processing
- LOW: Poor quality (<60% confidence) - Significant issues affecting readability

IMPORTANT: Return response in valid JSON format only. No additional text or explanations outside the JSON.

{
  "score": [number between 0.0 and 1.0],
  "classification": "[HIGH/MEDIUM/LOW]",
  "issues": ["specific issues found in the image"],
  "recommendations": ["actionable improvements for better quality"],
  "confidence": [number between 0.0 and 1.0]
}`

const contentPrompt = `You are a content type classifier for educational images. Identify the dominant type of content in the image.

Content Types:
- HANDWRITTEN_TEXT: handwritten notes, assignments, personal writing
- PRINTED_TEXT: textbooks, printed documents, typed content
- DIAGRAM: charts, graphs, illustrations, visual diagrams
- MIXED: combination of text and diagrams/annotations

Return response in valid JSON format only:

{
  "content_type": "HANDWRITTEN_TEXT/PRINTED_TEXT/DIAGRAM/MIXED",
  "confidence": [number between 0.0 and 1.0],
  "secondary_types": ["list of secondary content types if applicable"],
  "details": "specific observations about the content"
}

Text extracted from image: %s`
