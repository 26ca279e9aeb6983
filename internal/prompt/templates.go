package prompt

// Prose sections are stick (Twig) templates. Every variable is a string so rendering stays
// byte-stable.
var templates = map[string]string{
	"knowledge_intro": `The knowledge documents below are reference material for conflict detection and validation.
They are NOT extraction targets: never extract values from them, never cite them as document_source.`,

	"instructions": `1. Read ALL {{ document_count }} document(s) before extracting. Count every instance of each collection across all documents; emit one entry per property per instance, numbering instances with record_index.
2. Apply the extraction rules: GLOBAL rules to every field, TARGETED rules only to the fields they name. Rules adjust confidence_score, they never change which value is extracted.
3. Use knowledge documents only to detect conflicts with, or to validate, values found in the documents.
4. In ai_reasoning, state where the value was found and name the rule or knowledge document that influenced the confidence_score, or say that none applied.
5. Set document_source to the DOCUMENT header the value came from.
6. Use the exact field_id values from the SCHEMA FIELDS and COLLECTIONS blocks. If a value is absent, emit extracted_value null with a low confidence_score.
7. Return ONLY the JSON object described under REQUIRED OUTPUT FORMAT. No prose, no markdown outside a single json fence.`,

	"window": `This call covers records {{ start }} to {{ end }} of {{ total }}. Extract collection properties ONLY for these records:
{{ labels }}
record_index is 0-based within this window: record {{ start }} is record_index 0, record {{ end }} is record_index {{ last_offset }}.`,

	"confidence": `Base confidence_score: 85-95 for a value stated clearly and unambiguously in the documents.
Reduce the score when documents disagree, when a knowledge document contradicts the value, or when the value had to be inferred.
Apply rule-specified adjustments on top of the base score. Keep every score between 0 and 100.
Values at or above a field's auto_verification_confidence are accepted without human review, so do not inflate scores.`,

	"output": `Return one JSON object with the key "field_validations". The example below has one entry per schema field and per collection property.
For collections, repeat the property entries once per record instance with increasing record_index.`,
}
