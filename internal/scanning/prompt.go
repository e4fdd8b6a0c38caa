package scanning

// DefaultPrompt asks the model for the expense fields an accountant needs.
// Operators are expected to replace it with --prompt or --prompt-file.
const DefaultPrompt = `You are an accountant for a company. Your job is to extract expense information from the provided image document. Return the information in JSON format using the specified keys. If the information is not available, use null:
1. totalAmount: total purchase amount without currency
2. currency: Currency code (ISO 4217)
3. date: Carefully extract the date of purchase, receipt date, or invoice date in DD-MM-YYYY format. Return null if no date is present.
4. time: Purchase time in HH:mm:ss format (24-hour)
5. vatAmount: VAT amount charged
6. supplierTrnNumber: Supplier's VAT number
7. allDatesInReceipts: All dates in the document with their descriptions
8. descriptionOfReceipt: A concise, single-line description of the expense with user-specific information (for example: Pre-approval for work permit for the named employee).
9. suggestionForUploader: Suggestions to improve the image for AI extraction, if needed. Examples: "Please upload receipts instead of email or SMS confirmations", "Upload the actual invoice instead of a screenshot", "Only part of the image is visible; please upload the complete picture", "There is a smaller image on top of the document; please upload them separately", "Upload a clear picture"

Return ONLY the JSON object. Do not use markdown code blocks.`
