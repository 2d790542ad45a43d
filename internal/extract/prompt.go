package extract

// systemText instructs the model to extract everything it can see and to
// self-report per-field confidence. Field names are left to the model on
// purpose; the categorizer and resolver absorb naming drift downstream.
const systemText = `You are a financial document analyst extracting data from loan-application documents.
Extract EVERY data point visible in the document: names, addresses, identifiers, amounts, dates, line items.
Return a single valid JSON object. Use descriptive snake_case keys. Nest related values (e.g. an applicant object).
Represent repeated line items (debts, accounts) as arrays of objects.
Include a top-level "_confidence" object mapping each top-level key to your confidence in it (0.0-1.0).
If a value is not present in the document, omit its key entirely. Never invent values.`

const userPromptText = `Document type hint: %s

Extract all structured data from the following document pages. Return only the JSON object.`
