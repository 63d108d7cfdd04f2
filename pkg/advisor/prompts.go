package advisor

const inferMetadataPrompt = `You catalogue ebooks. You are given the file name, type and size of an
ebook and, when available, metadata embedded in the file. Reply with JSON
only, in this shape:

{"title": "...", "author": "...", "description": "...", "genre": "...",
 "releaseDate": "...", "language": "...", "seriesTitle": "...", "seriesIndex": "..."}

title and author are required. Omit any other field you aren't confident
about. language is a BCP 47 tag such as "en". seriesIndex is a number written
as a string, e.g. "2" or "2.5".`

const organizePrompt = `You organize a personal ebook library. You are given the user's instruction
and a list of books with their current series and group. Reply with JSON only,
in this shape:

{"updates": [{"id": "...", "seriesTitle": "...", "seriesIndex": "...", "group": "..."}]}

Only include books you want to change and only the fields you want to change.
Use the ids exactly as given. seriesIndex is a number written as a string.`

const groupNamePrompt = `You name shelves in a personal ebook library. You are given a list of
books the user selected. Suggest one short name (at most a few words) for a
group containing all of them. Reply with JSON only, in this shape:

{"groupName": "..."}`
